// Package textnorm normalizes free text for comparisons: quotes against context blocks and
// submitted answers against accepted ones.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold applies NFKC and Unicode case folding, then collapses whitespace runs into one space.
func Fold(s string) string {
	s = norm.NFKC.String(s)
	// A Caser holds state and must not be shared between goroutines.
	s = cases.Fold().String(s)
	return CollapseSpace(s)
}

// CollapseSpace trims s and replaces every whitespace run with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Answer folds s and strips punctuation and symbols surrounding it, so "Paris." matches "paris".
func Answer(s string) string {
	s = Fold(s)
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
	})
}

// Words splits folded text into words made of letters and digits.
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// ContainsPhrase reports whether phrase occurs in text on word boundaries, after folding both.
func ContainsPhrase(text, phrase string) bool {
	tw, pw := Words(text), Words(phrase)
	if len(pw) == 0 || len(pw) > len(tw) {
		return false
	}

	for i := 0; i+len(pw) <= len(tw); i++ {
		match := true
		for j := range pw {
			if tw[i+j] != pw[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	return false
}
