// Package grading scores one normalized answer against the private key of its question. Every
// question type has its own strategy; none of them fails on bad input, they score zero instead.
package grading

import (
	"context"
	"math"

	"github.com/victornm/quizforge/internal/answer"
	"github.com/victornm/quizforge/internal/domain"
)

const (
	DefaultShortAnswerThreshold = 0.6
	scorePrecision              = 1e4
)

// Question is the view of a session question needed for grading.
type Question struct {
	Type   domain.QuestionType
	Points float64
	Key    domain.PrivatePayload
}

// QuestionFrom builds the grading view of a materialized session question.
func QuestionFrom(sq domain.SessionQuestion) Question {
	return Question{Type: sq.Type, Points: sq.Points, Key: sq.Private}
}

// Result is the outcome of grading one answer. 0 <= Score <= MaxScore.
type Result struct {
	Score    float64
	MaxScore float64
	Correct  bool
	Feedback string
}

// Strategy grades the answers of one question type.
type Strategy interface {
	Evaluate(ctx context.Context, q Question, a answer.Normalized) Result
}

type Option func(*config)

type config struct {
	shortAnswerThreshold float64
	revealAnswers        bool
}

// WithShortAnswerThreshold sets the matched-weight ratio needed for a short answer to count as
// correct when its rubric does not set one.
func WithShortAnswerThreshold(t float64) Option {
	return func(c *config) {
		if t > 0 && t <= 1 {
			c.shortAnswerThreshold = t
		}
	}
}

// WithRevealAnswers controls whether feedback on wrong answers names the expected answer.
func WithRevealAnswers(b bool) Option {
	return func(c *config) { c.revealAnswers = b }
}

type Engine struct {
	strategies map[domain.QuestionType]Strategy
}

func NewEngine(opts ...Option) *Engine {
	c := &config{
		shortAnswerThreshold: DefaultShortAnswerThreshold,
		revealAnswers:        true,
	}
	for _, o := range opts {
		o(c)
	}

	return &Engine{
		strategies: map[domain.QuestionType]Strategy{
			domain.QuestionTypeMCQ: choiceStrategy{reveal: c.revealAnswers},
			domain.QuestionTypeTF:  booleanStrategy{reveal: c.revealAnswers},
			domain.QuestionTypeFIB: blanksStrategy{reveal: c.revealAnswers},
			domain.QuestionTypeSA: rubricStrategy{
				reveal:    c.revealAnswers,
				threshold: c.shortAnswerThreshold,
				patterns:  new(patternCache),
			},
		},
	}
}

// Evaluate grades a with the strategy of q's type. The score is rounded to 4 decimals and kept
// within [0, max points].
func (e *Engine) Evaluate(ctx context.Context, q Question, a answer.Normalized) Result {
	maxScore := q.Points
	if maxScore <= 0 {
		maxScore = domain.DefaultPoints
	}
	q.Points = maxScore

	s, ok := e.strategies[q.Type]
	if !ok || q.Key == nil || q.Key.Type() != q.Type {
		return Result{MaxScore: maxScore, Feedback: "This question cannot be graded."}
	}
	if a == nil {
		a = answer.Empty{}
	}

	r := s.Evaluate(ctx, q, a)
	r.MaxScore = maxScore
	r.Score = clamp(round(r.Score), 0, maxScore)

	return r
}

func round(f float64) float64 {
	return math.Round(f*scorePrecision) / scorePrecision
}

func clamp(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}
