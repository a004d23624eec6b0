package compact

import (
	"regexp"
	"strings"
)

var nuitkaTaggedPattern = regexp.MustCompile(`^(Nuitka(?:-[A-Za-z]+)?(?::[A-Za-z0-9_-]+)?):(WARNING|ERROR|FATAL|INFO):\s*(.*)$`)
var fatalPattern = regexp.MustCompile(`^FATAL:\s*(.*)$`)
var compilerErrorPattern = regexp.MustCompile(`(?i)^[^\s:]+(?::\d+){0,2}:\s*(?:fatal\s+)?error:\s*(.*)$`)
var compilerWarningPattern = regexp.MustCompile(`(?i)^[^\s:]+(?::\d+){0,2}:\s*warning:\s*(.*)$`)
var tracebackPattern = regexp.MustCompile(`^Traceback \(most recent call last\):`)
var memoryPattern = regexp.MustCompile(`(?i)^Nuitka(?:-[A-Za-z]+)?:(?:INFO:)?.*memory usage`)

type LineKind string

const (
	LineKindInfo    LineKind = "info"
	LineKindWarning LineKind = "warning"
	LineKindError   LineKind = "error"
	LineKindMemory  LineKind = "memory"
)

type LineEvent struct {
	Kind   LineKind
	Source string
	Text   string
}

// ParseLine classifies one line of compiler output by severity. Unknown
// lines are informational.
func ParseLine(line string) LineEvent {
	trimmed := strings.TrimSpace(line)

	if memoryPattern.MatchString(trimmed) {
		return LineEvent{Kind: LineKindMemory, Text: trimmed}
	}
	if match := nuitkaTaggedPattern.FindStringSubmatch(trimmed); len(match) == 4 {
		event := LineEvent{Source: match[1], Text: strings.TrimSpace(match[3])}
		switch match[2] {
		case "WARNING":
			event.Kind = LineKindWarning
		case "ERROR", "FATAL":
			event.Kind = LineKindError
		default:
			event.Kind = LineKindInfo
		}
		return event
	}
	if match := fatalPattern.FindStringSubmatch(trimmed); len(match) == 2 {
		return LineEvent{Kind: LineKindError, Text: strings.TrimSpace(match[1])}
	}
	if tracebackPattern.MatchString(trimmed) {
		return LineEvent{Kind: LineKindError, Text: trimmed}
	}
	if match := compilerErrorPattern.FindStringSubmatch(trimmed); len(match) == 2 {
		return LineEvent{Kind: LineKindError, Text: strings.TrimSpace(match[1])}
	}
	if match := compilerWarningPattern.FindStringSubmatch(trimmed); len(match) == 2 {
		return LineEvent{Kind: LineKindWarning, Text: strings.TrimSpace(match[1])}
	}
	return LineEvent{Kind: LineKindInfo, Text: trimmed}
}

func MatchesWarning(line string) bool {
	return ParseLine(line).Kind == LineKindWarning
}

func MatchesError(line string) bool {
	return ParseLine(line).Kind == LineKindError
}
