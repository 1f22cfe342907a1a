// file: internal/matcher/normalize.go
// version: 1.0.0
// guid: 91f101b5-16cb-444d-aaad-5aea50bb8af3

package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DedupKey identifies a record for duplicate collapsing.
type DedupKey struct {
	Title  string
	Author string
}

// NormalizeKey lowercases s, removes punctuation and trims whitespace.
// Input is NFC-composed first so canonically equivalent strings produce the
// same key, and inner whitespace runs left behind by removed punctuation are
// collapsed to one space.
func NormalizeKey(s string) string {
	s = norm.NFC.String(s)
	s = cases.Lower(language.Und).String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// KeyOf builds the DedupKey for a title and primary author.
func KeyOf(title, primaryAuthor string) DedupKey {
	return DedupKey{Title: NormalizeKey(title), Author: NormalizeKey(primaryAuthor)}
}
