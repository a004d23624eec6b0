package logging

import (
	"fmt"
	"io"
	"strings"

	logrusr "github.com/bombsimon/logrusr/v3"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// New builds the diagnostic logger. logr V(1) lines need level "debug",
// V(2) and above need "trace".
func New(level string, format string, w io.Writer) (logr.Logger, error) {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logr.Discard(), fmt.Errorf("logging level: %w", err)
	}

	logrusLog := logrus.New()
	logrusLog.SetOutput(w)
	logrusLog.SetLevel(parsed)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		logrusLog.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	case FormatJSON:
		logrusLog.SetFormatter(&logrus.JSONFormatter{})
	default:
		return logr.Discard(), fmt.Errorf("logging format %q is not one of text, json", format)
	}
	return logrusr.New(logrusLog), nil
}
