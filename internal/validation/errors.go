package validation

import (
	"fmt"
	"strings"
)

// Class identifies a family of validation failures. Each class owns one repair attempt.
type Class string

const (
	ClassSchema   Class = "schema"
	ClassCitation Class = "citation"
	ClassLanguage Class = "language"
)

const maxDetails = 10

// Failure is implemented by SchemaError, CitationError and LanguageMismatchError.
type Failure interface {
	error
	Class() Class
	Reason() string
	Problems() []string
}

type SchemaError struct {
	Details []string
}

type CitationError struct {
	Details []string
}

type LanguageMismatchError struct {
	Declared string
	Detected string
}

func (*SchemaError) Class() Class           { return ClassSchema }
func (*CitationError) Class() Class         { return ClassCitation }
func (*LanguageMismatchError) Class() Class { return ClassLanguage }

func (e *SchemaError) Reason() string   { return first(e.Details) }
func (e *CitationError) Reason() string { return first(e.Details) }
func (e *LanguageMismatchError) Reason() string {
	return fmt.Sprintf("output_language %q does not match the context language %q", e.Declared, e.Detected)
}

func (e *SchemaError) Problems() []string           { return e.Details }
func (e *CitationError) Problems() []string         { return e.Details }
func (e *LanguageMismatchError) Problems() []string { return []string{e.Reason()} }

func (e *SchemaError) Error() string           { return "schema: " + e.Reason() }
func (e *CitationError) Error() string         { return "citation: " + e.Reason() }
func (e *LanguageMismatchError) Error() string { return "language: " + e.Reason() }

// Summary joins the problems of a failure into one line, for re-prompting.
func Summary(f Failure) string {
	return strings.Join(f.Problems(), "; ")
}

func first(s []string) string {
	if len(s) == 0 {
		return "unknown failure"
	}
	return s[0]
}

// problems collects failure details up to maxDetails.
type problems []string

func (p *problems) addf(format string, args ...any) {
	p.add(fmt.Sprintf(format, args...))
}

func (p *problems) add(details ...string) {
	for _, d := range details {
		if len(*p) >= maxDetails {
			return
		}
		*p = append(*p, d)
	}
}
