package generation

import (
	"fmt"
	"strings"

	"github.com/victornm/quizforge/internal/domain"
)

const systemPrompt = `You write quiz questions grounded strictly in the numbered context blocks you are given.
Respond with one JSON object and nothing else, shaped as:
{
  "output_language": "<ISO 639-1 code of the context language>",
  "questions": [
    {
      "type": "MCQ" | "TF" | "FIB" | "SA",
      "stem": "<question text>",
      "points": 1,
      "explanation": "<why the answer is correct>",
      "metadata": {
        "difficulty": "<easy|medium|hard>",
        "sources": [{"context_id": "<block id, e.g. c1>", "quote": "<verbatim excerpt of that block>"}]
      }
    }
  ]
}
Type-specific fields:
- MCQ: "options": exactly 4 objects {"id": "opt_1".."opt_4", "text": "..."}, and "correct_option_id" naming exactly one of them.
- TF: "answer": true or false.
- FIB: the stem marks each gap with ____ ; "blanks": one list of accepted answers per gap, in order.
- SA: "rubric": {"key_points": at least 3 objects {"text": "...", "weight": 1, "alternatives": ["..."]}, "threshold": 0.6}.
Rules:
- Every question cites at least one block. A quote must be copied verbatim from the cited block and be at most %d characters.
- Only cite block ids that appear in the context.
- Write every question in the language of the context and declare it in "output_language".`

func buildSystemPrompt(maxQuote int) string {
	return fmt.Sprintf(systemPrompt, maxQuote)
}

func buildUserPrompt(blocks []domain.ContextBlock, n int, types []domain.QuestionType, difficulty string) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for _, b := range blocks {
		fmt.Fprintf(&sb, "[%s] %s\n", b.ID, b.Text)
	}

	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}

	fmt.Fprintf(&sb, "\nWrite %d questions using only these types: %s.", n, strings.Join(names, ", "))
	if difficulty != "" {
		fmt.Fprintf(&sb, " Target difficulty: %s.", difficulty)
	}

	return sb.String()
}
