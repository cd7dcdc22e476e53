package grading

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/victornm/quizforge/internal/answer"
	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/textnorm"
)

const (
	feedbackCorrect  = "Correct."
	feedbackNoAnswer = "No answer submitted."
)

type choiceStrategy struct{ reveal bool }

func (s choiceStrategy) Evaluate(_ context.Context, q Question, a answer.Normalized) Result {
	key := q.Key.(domain.MCQKey)

	var selected []string
	switch v := a.(type) {
	case answer.SingleChoice:
		selected = []string{v.OptionID}
	case answer.MultiChoice:
		selected = v.OptionIDs
	}

	if len(key.CorrectIDs) > 0 && sameSet(selected, key.CorrectIDs) {
		return Result{Score: q.Points, Correct: true, Feedback: feedbackCorrect}
	}

	fb := "Incorrect."
	if len(selected) == 0 {
		fb = feedbackNoAnswer
	}
	if s.reveal {
		texts := make([]string, 0, len(key.CorrectIDs))
		for _, id := range key.CorrectIDs {
			texts = append(texts, key.OptionText[id])
		}
		fb += fmt.Sprintf(" The correct answer is: %s.", strings.Join(texts, ", "))
	}

	return Result{Feedback: fb}
}

func sameSet(a, b []string) bool {
	as := make(map[string]bool, len(a))
	for _, v := range a {
		as[v] = true
	}
	bs := make(map[string]bool, len(b))
	for _, v := range b {
		bs[v] = true
	}

	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if !bs[v] {
			return false
		}
	}
	return true
}

type booleanStrategy struct{ reveal bool }

func (s booleanStrategy) Evaluate(_ context.Context, q Question, a answer.Normalized) Result {
	key := q.Key.(domain.TFKey)

	b, ok := a.(answer.Boolean)
	if ok && b.Value == key.Answer {
		return Result{Score: q.Points, Correct: true, Feedback: feedbackCorrect}
	}

	fb := "Incorrect."
	if !ok {
		fb = feedbackNoAnswer
	}
	if s.reveal {
		fb += fmt.Sprintf(" The correct answer is: %s.", boolText(key.Answer))
	}

	return Result{Feedback: fb}
}

func boolText(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

type blanksStrategy struct{ reveal bool }

// Evaluate credits matched / max(accepted, submitted, 1) of the points, so padding an answer with
// extra blanks never helps.
func (s blanksStrategy) Evaluate(_ context.Context, q Question, a answer.Normalized) Result {
	key := q.Key.(domain.FIBKey)

	var values []string
	if b, ok := a.(answer.Blanks); ok {
		values = b.Values
	}

	matched := 0
	for i := 0; i < len(values) && i < len(key.Accepted); i++ {
		if acceptedBlank(values[i], key.Accepted[i]) {
			matched++
		}
	}

	denom := max(len(key.Accepted), len(values), 1)
	r := Result{
		Score:   q.Points * float64(matched) / float64(denom),
		Correct: matched == denom,
	}

	switch {
	case r.Correct:
		r.Feedback = feedbackCorrect
	case len(values) == 0:
		r.Feedback = feedbackNoAnswer
	default:
		r.Feedback = fmt.Sprintf("%d of %d blanks correct.", matched, len(key.Accepted))
	}
	if !r.Correct && s.reveal {
		expected := make([]string, 0, len(key.Accepted))
		for _, acc := range key.Accepted {
			if len(acc) > 0 {
				expected = append(expected, acc[0])
			}
		}
		r.Feedback += fmt.Sprintf(" Expected: %s.", strings.Join(expected, ", "))
	}

	return r
}

func acceptedBlank(value string, accepted []string) bool {
	v := textnorm.Answer(value)
	if v == "" {
		return false
	}
	for _, acc := range accepted {
		if textnorm.Answer(acc) == v {
			return true
		}
	}
	return false
}

type rubricStrategy struct {
	reveal    bool
	threshold float64
	patterns  *patternCache
}

// Evaluate sums the weights of the key points found in the answer, capped at the total weight.
// Correctness needs the matched ratio to reach the threshold and, when set, a minimum word count.
func (s rubricStrategy) Evaluate(_ context.Context, q Question, a answer.Normalized) Result {
	key := q.Key.(domain.SARubric)

	t, ok := a.(answer.Text)
	if !ok {
		return Result{Feedback: feedbackNoAnswer}
	}

	var (
		total, matched float64
		hits           int
		missing        []string
	)
	for _, kp := range key.KeyPoints {
		if kp.Weight <= 0 {
			continue
		}
		total += kp.Weight
		if s.matches(t.Value, kp) {
			matched += kp.Weight
			hits++
		} else {
			missing = append(missing, keyPointLabel(kp))
		}
	}

	if total <= 0 {
		return Result{Feedback: "This question has no gradable rubric."}
	}

	ratio := min(1, matched/total)
	threshold := key.Threshold
	if threshold <= 0 {
		threshold = s.threshold
	}
	words := len(textnorm.Words(t.Value))

	r := Result{
		Score:   q.Points * ratio,
		Correct: ratio >= threshold && (key.MinWords <= 0 || words >= key.MinWords),
	}

	r.Feedback = fmt.Sprintf("Covered %d of %d key points.", hits, hits+len(missing))
	if key.MinWords > 0 && words < key.MinWords {
		r.Feedback += fmt.Sprintf(" The answer needs at least %d words.", key.MinWords)
	}
	if !r.Correct && s.reveal && len(missing) > 0 {
		r.Feedback += fmt.Sprintf(" Missing: %s.", strings.Join(missing, "; "))
	}

	return r
}

func (s rubricStrategy) matches(text string, kp domain.KeyPoint) bool {
	literals := append([]string{kp.Text}, kp.Alternatives...)
	for _, l := range literals {
		if strings.TrimSpace(l) != "" && textnorm.ContainsPhrase(text, l) {
			return true
		}
	}

	for _, p := range kp.Patterns {
		if re := s.patterns.get(p); re != nil && re.MatchString(text) {
			return true
		}
	}

	return false
}

// patternCache keeps rubric patterns compiled across evaluations. A pattern that does not compile
// is remembered as nil and never matches.
type patternCache struct {
	m sync.Map
}

func (c *patternCache) get(pattern string) *regexp.Regexp {
	if v, ok := c.m.Load(pattern); ok {
		return v.(*regexp.Regexp)
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		re = nil
	}
	v, _ := c.m.LoadOrStore(pattern, re)
	return v.(*regexp.Regexp)
}

func keyPointLabel(kp domain.KeyPoint) string {
	if kp.Text != "" {
		return kp.Text
	}
	if len(kp.Alternatives) > 0 {
		return kp.Alternatives[0]
	}
	return "an expected point"
}
