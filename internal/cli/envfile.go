package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var dotenvKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var dotenvFiles = []string{".env", ".env.local"}

type dotenvEntry struct {
	Key   string
	Value string
	// Expand is false for single-quoted values.
	Expand bool
}

// loadDotEnvFiles applies .env then .env.local from cwd. Variables already
// present in environ always win. Unquoted and double-quoted values may
// reference earlier variables as $NAME or ${NAME}.
func loadDotEnvFiles(cwd string, environ []string, setenv func(string, string) error) error {
	if strings.TrimSpace(cwd) == "" {
		return nil
	}
	if setenv == nil {
		return fmt.Errorf("setenv is required")
	}

	known := map[string]string{}
	protected := map[string]struct{}{}
	for _, pair := range environ {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		known[key] = value
		protected[key] = struct{}{}
	}

	for _, name := range dotenvFiles {
		path := filepath.Join(cwd, name)
		entries, err := readDotEnvFile(path)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if _, exists := protected[entry.Key]; exists {
				continue
			}
			value := entry.Value
			if entry.Expand {
				value = os.Expand(value, func(ref string) string { return known[ref] })
			}
			if err := setenv(entry.Key, value); err != nil {
				return fmt.Errorf("set %s from %s: %w", entry.Key, path, err)
			}
			known[entry.Key] = value
		}
	}
	return nil
}

func readDotEnvFile(path string) ([]dotenvEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer file.Close()

	entries := []dotenvEntry{}
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		entry, ok, parseErr := parseDotEnvLine(scanner.Text())
		if parseErr != nil {
			return nil, fmt.Errorf("parse %s:%d: %w", path, lineNo, parseErr)
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return entries, nil
}

func parseDotEnvLine(raw string) (dotenvEntry, bool, error) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return dotenvEntry{}, false, nil
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	key, value, found := strings.Cut(line, "=")
	if !found {
		return dotenvEntry{}, false, fmt.Errorf("expected KEY=VALUE format")
	}
	key = strings.TrimSpace(key)
	if !dotenvKeyPattern.MatchString(key) {
		return dotenvEntry{}, false, fmt.Errorf("invalid key %q", key)
	}
	value = strings.TrimSpace(value)

	switch {
	case len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`):
		decoded, err := strconv.Unquote(value)
		if err != nil {
			return dotenvEntry{}, false, fmt.Errorf("invalid quoted value for %q", key)
		}
		return dotenvEntry{Key: key, Value: decoded, Expand: true}, true, nil
	case len(value) >= 2 && strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'"):
		return dotenvEntry{Key: key, Value: value[1 : len(value)-1]}, true, nil
	default:
		if idx := strings.Index(value, " #"); idx >= 0 {
			value = strings.TrimSpace(value[:idx])
		}
		return dotenvEntry{Key: key, Value: value, Expand: true}, true, nil
	}
}
