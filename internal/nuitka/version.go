package nuitka

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	semverPattern      = regexp.MustCompile(`(\d+\.\d+\.\d+)`)
	versionWordPattern = regexp.MustCompile(`(?i)version\s*([\d.]+)`)
	vPrefixPattern     = regexp.MustCompile(`(?i)v(\d+\.\d+\.\d+)`)
	bareVersionPattern = regexp.MustCompile(`^v?(\d+\.\d+(?:\.\d+)?)`)
)

// ParseVersion pulls the compiler version out of `nuitka --version` output.
// Lines that start with "Nuitka" are preferred; recent releases print the
// bare version on the first line instead.
func ParseVersion(output string) (string, bool) {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, "Nuitka") && !strings.HasPrefix(line, "nuitka") {
			continue
		}
		if match := semverPattern.FindStringSubmatch(line); match != nil {
			return match[1], true
		}
		if match := versionWordPattern.FindStringSubmatch(line); match != nil {
			return strings.TrimSuffix(match[1], "."), true
		}
		if match := vPrefixPattern.FindStringSubmatch(line); match != nil {
			return match[1], true
		}
		if fields := strings.Fields(line); len(fields) >= 2 {
			return strings.TrimPrefix(fields[1], "v"), true
		}
	}
	for _, raw := range lines {
		if match := bareVersionPattern.FindStringSubmatch(strings.TrimSpace(raw)); match != nil {
			return match[1], true
		}
	}
	return "", false
}

// CompareVersions compares dotted numeric versions; missing or non-numeric
// parts count as 0.
func CompareVersions(lhs string, rhs string) int {
	leftParts := strings.Split(strings.TrimPrefix(lhs, "v"), ".")
	rightParts := strings.Split(strings.TrimPrefix(rhs, "v"), ".")
	size := len(leftParts)
	if len(rightParts) > size {
		size = len(rightParts)
	}
	for i := 0; i < size; i++ {
		leftValue := 0
		rightValue := 0
		if i < len(leftParts) {
			leftValue, _ = strconv.Atoi(leftParts[i])
		}
		if i < len(rightParts) {
			rightValue, _ = strconv.Atoi(rightParts[i])
		}
		if leftValue > rightValue {
			return 1
		}
		if leftValue < rightValue {
			return -1
		}
	}
	return 0
}

// ParseOutdated looks for the nuitka row in `pip list --outdated` output,
// either the default column layout or --format=freeze style
// ("nuitka==2.4.8"). Package names compare case-insensitively.
func ParseOutdated(output string) (installed string, latest string, ok bool) {
	for _, raw := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		name, version, _ := strings.Cut(fields[0], "==")
		if !strings.EqualFold(name, "nuitka") {
			continue
		}
		if version != "" {
			return version, "", true
		}
		if len(fields) >= 3 {
			return fields[1], fields[2], true
		}
		if len(fields) == 2 {
			return fields[1], "", true
		}
		return "", "", true
	}
	return "", "", false
}
