package validation

import (
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/victornm/quizforge/internal/domain"
)

// LanguageDetector reports the ISO 639-1 code, English name and confidence in [0, 1] of the
// dominant language of a text.
type LanguageDetector interface {
	Detect(text string) (code, name string, confidence float64)
}

// WhatlangDetector detects languages with trigram profiles from whatlanggo.
type WhatlangDetector struct{}

func (WhatlangDetector) Detect(text string) (string, string, float64) {
	info := whatlanggo.Detect(text)
	if info.Lang < 0 {
		return "", "", 0
	}
	return info.Lang.Iso6391(), info.Lang.String(), info.Confidence
}

// CheckLanguage compares the declared output language with the language detected in the context
// blocks. Detection below the configured confidence never fails the check.
func (v *Validator) CheckLanguage(batch *domain.QuestionBatch, blocks []domain.ContextBlock) error {
	if v.detector == nil || len(blocks) == 0 {
		return nil
	}

	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		texts = append(texts, b.Text)
	}

	code, name, confidence := v.detector.Detect(strings.Join(texts, "\n"))
	if code == "" || confidence < v.c.MinLanguageConfidence {
		return nil
	}

	if !sameLanguage(batch.OutputLanguage, code, name) {
		return &LanguageMismatchError{Declared: batch.OutputLanguage, Detected: code}
	}

	return nil
}

// sameLanguage accepts a declared ISO code with or without region ("en", "en-US", "en_GB") or
// the language name ("English").
func sameLanguage(declared, code, name string) bool {
	d := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexAny(d, "-_"); i > 0 {
		d = d[:i]
	}

	return d == strings.ToLower(code) || d == strings.ToLower(name)
}
