// Package normalize canonicalizes entity display names and scores how alike
// two names are.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Exceptions overrides the rule-based result for specific original names.
// Replacement values are fixed points: a name that is some entry's
// replacement normalizes to itself.
type Exceptions interface {
	NameException(original string) (string, bool)
	IsNameExceptionTarget(name string) bool
}

// Normalizer turns display names into their canonical form.
type Normalizer struct {
	exceptions Exceptions
}

// New creates a Normalizer. exceptions may be nil.
func New(exceptions Exceptions) *Normalizer {
	return &Normalizer{exceptions: exceptions}
}

// Normalize strips diacritics, trims leading and trailing punctuation runs and
// collapses internal whitespace. Internal punctuation and case are preserved.
// An exceptions entry for the trimmed original name wins over the rules, and
// a replacement value is returned unchanged.
func (n *Normalizer) Normalize(name string) string {
	name = strings.TrimSpace(name)
	if n != nil && n.exceptions != nil {
		if replacement, ok := n.exceptions.NameException(name); ok {
			return replacement
		}
		if n.exceptions.IsNameExceptionTarget(name) {
			return name
		}
	}
	return Clean(name)
}

// Key returns the case-folded normalized name used for exact-match lookups.
func (n *Normalizer) Key(name string) string {
	return Fold(n.Normalize(name))
}

// Clean applies the rule-based normalization without consulting exceptions.
func Clean(name string) string {
	s := StripDiacritics(name)
	s = strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(strings.Fields(s), " ")
}

// StripDiacritics decomposes s and drops combining marks.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold case-folds s for comparisons.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Slug reduces s to lower-case ASCII letters and digits. Two strings that
// differ only in case, accents, spacing or punctuation share a slug.
func Slug(s string) string {
	s = Fold(StripDiacritics(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
