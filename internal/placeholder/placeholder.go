// Package placeholder finds {name} substitution points in template text.
package placeholder

import (
	"fmt"
	"regexp"
)

// pattern matches from a '{' to the first following '}'. (?s) lets the
// interior span line breaks.
var pattern = regexp.MustCompile(`(?s)\{(.*?)\}`)

// Extract returns the distinct placeholder names in text, ordered by first
// occurrence. Matches are leftmost-first and non-overlapping, so "{a{b}c}"
// yields "a{b". Empty names ("{}") are skipped.
func Extract(text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		name := m[1]
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Missing returns the names not present as keys in values, in the order given.
func Missing(names []string, values map[string]string) []string {
	var out []string
	for _, n := range names {
		if _, ok := values[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// BraceError describes the first brace that keeps text from being rendered.
// Offset counts runes from the start of the text.
type BraceError struct {
	Offset int
	Reason string
}

func (e *BraceError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Reason, e.Offset)
}

// CheckBraces reports nested '{', a '}' with no open placeholder, and a '{'
// that is never closed. Extract tolerates all three; the renderer does not.
func CheckBraces(text string) error {
	open := -1
	i := 0
	for _, c := range text {
		switch c {
		case '{':
			if open >= 0 {
				return &BraceError{Offset: i, Reason: "nested '{'"}
			}
			open = i
		case '}':
			if open < 0 {
				return &BraceError{Offset: i, Reason: "'}' without matching '{'"}
			}
			open = -1
		}
		i++
	}
	if open >= 0 {
		return &BraceError{Offset: open, Reason: "unclosed '{'"}
	}
	return nil
}
