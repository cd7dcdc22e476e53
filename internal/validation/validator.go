// Package validation enforces the schema and grounding contract on model-generated question
// batches. It never calls the model; repairs are driven by the generation package.
package validation

import (
	"github.com/victornm/quizforge/internal/domain"
)

type Config struct {
	// MinStemLength is the minimum number of characters of a question stem.
	MinStemLength int
	// MaxQuoteLength is the maximum number of characters of a citation quote.
	MaxQuoteLength int
	// MinLanguageConfidence is the detection confidence below which the language check passes.
	MinLanguageConfidence float64
}

func DefaultConfig() Config {
	return Config{
		MinStemLength:         10,
		MaxQuoteLength:        300,
		MinLanguageConfidence: 0.5,
	}
}

type Validator struct {
	c        Config
	detector LanguageDetector
}

// NewValidator creates a validator. Zero config fields fall back to DefaultConfig; a nil detector
// disables the language check.
func NewValidator(c Config, d LanguageDetector) *Validator {
	def := DefaultConfig()
	if c.MinStemLength <= 0 {
		c.MinStemLength = def.MinStemLength
	}
	if c.MaxQuoteLength <= 0 {
		c.MaxQuoteLength = def.MaxQuoteLength
	}
	if c.MinLanguageConfidence <= 0 {
		c.MinLanguageConfidence = def.MinLanguageConfidence
	}

	return &Validator{c: c, detector: d}
}

// Validate runs every check in order: structure, citations, then language. The returned error,
// if any, is a Failure of the first failing class.
func (v *Validator) Validate(raw string, allowed []domain.QuestionType, blocks []domain.ContextBlock) (*domain.QuestionBatch, error) {
	batch, err := v.ParseBatch(raw, allowed)
	if err != nil {
		return nil, err
	}

	if err := v.VerifyCitations(batch, blocks); err != nil {
		return nil, err
	}

	if err := v.CheckLanguage(batch, blocks); err != nil {
		return nil, err
	}

	return batch, nil
}

// Config returns the effective configuration, defaults applied.
func (v *Validator) Config() Config {
	return v.c
}
