package common

import (
	"regexp"
	"strings"
)

var spaceRun = regexp.MustCompile(`\s+`)

// CollapseWhitespace squashes runs of whitespace (including newlines from
// rendered markup) into single spaces and trims the result.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// TrimAnyPrefix removes the first matching prefix, case-insensitively, and
// trims surrounding whitespace. Used to strip source boilerplate lead-ins.
func TrimAnyPrefix(s string, prefixes ...string) string {
	for _, p := range prefixes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}
