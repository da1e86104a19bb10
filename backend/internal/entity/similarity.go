package entity

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Similarity returns the Ratcliff/Obershelp ratio (2*matches / total length)
// of two names compared case-insensitively, in [0, 1].
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1.0
	}
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

// Compact lower-cases a name and drops all whitespace, so "Open AI" and
// "OpenAI" compare equal.
func Compact(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}

// runes splits a string into one element per character for the matcher
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
