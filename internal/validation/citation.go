package validation

import (
	"strings"

	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/textnorm"
)

// VerifyCitations checks that every citation refers to a known block and that its quote, after
// whitespace and case normalization, is contained in that block's text.
func (v *Validator) VerifyCitations(batch *domain.QuestionBatch, blocks []domain.ContextBlock) error {
	texts := make(map[string]string, len(blocks))
	for _, b := range blocks {
		texts[b.ID] = textnorm.Fold(b.Text)
	}

	var p problems
	for i, q := range batch.Questions {
		for j, s := range q.Metadata.Sources {
			text, ok := texts[s.ContextID]
			if !ok {
				p.addf("question %d: citation %d: unknown context_id %q", i+1, j+1, s.ContextID)
				continue
			}
			if !strings.Contains(text, textnorm.Fold(s.Quote)) {
				p.addf("question %d: citation %d: quote %q is not found in context block %s", i+1, j+1, s.Quote, s.ContextID)
			}
		}
	}

	if len(p) > 0 {
		return &CitationError{Details: p}
	}

	return nil
}
