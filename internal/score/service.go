// Package score grades whole sessions: it evaluates every answer, persists the graded answers and
// aggregates them into a score, a letter grade and a per-type breakdown.
package score

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizforge/internal/answer"
	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/errors"
	"github.com/victornm/quizforge/internal/event"
	"github.com/victornm/quizforge/internal/grading"
	"github.com/victornm/quizforge/internal/telemetry"
)

type Store interface {
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessionQuestions(ctx context.Context, sessionID string) ([]domain.SessionQuestion, error)
	SaveGrading(ctx context.Context, sessionID string, answers []domain.SessionAnswer, submittedAt time.Time) error
	ListSessionAnswers(ctx context.Context, sessionID string) (map[string]domain.SessionAnswer, error)
}

type Config struct {
	Store    Store
	EventBus *event.Bus
	Engine   *grading.Engine
}

type Service struct {
	store  Store
	eb     *event.Bus
	engine *grading.Engine
}

func NewService(c Config) *Service {
	engine := c.Engine
	if engine == nil {
		engine = grading.NewEngine()
	}

	return &Service{
		store:  c.Store,
		eb:     c.EventBus,
		engine: engine,
	}
}

type GradeSessionRequest struct {
	SessionID string
	UserID    string
	// Answers maps session question ids to raw answers of any supported shape.
	Answers map[string]any
}

// GradeSession grades every question of a session, stores one answer per question and marks the
// session submitted. Grading the same answers again yields the same result.
func (s *Service) GradeSession(ctx context.Context, req GradeSessionRequest) (*domain.GradeResult, error) {
	ss, qs, err := s.loadOwned(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(qs))
	for _, q := range qs {
		known[q.ID] = true
	}
	for id := range req.Answers {
		if !known[id] {
			return nil, errors.NotFound("question %s is not part of session %s", id, ss.ID)
		}
	}

	now := time.Now().UTC()
	graded := make([]gradedQuestion, 0, len(qs))
	answers := make([]domain.SessionAnswer, 0, len(qs))
	for _, q := range qs {
		n, err := answer.Normalize(q.Type, req.Answers[q.ID])
		if err != nil {
			telemetry.MalformedAnswers.WithLabelValues(string(q.Type)).Inc()
			slog.DebugContext(ctx, "score: malformed answer",
				"session_id", ss.ID,
				"session_question_id", q.ID,
				"error", err,
			)
		}

		r := s.engine.Evaluate(ctx, grading.QuestionFrom(q), n)

		payload, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("marshal answer: %w", err)
		}

		graded = append(graded, gradedQuestion{q: q, userAnswer: n, result: r})
		answers = append(answers, domain.SessionAnswer{
			SessionID:         ss.ID,
			SessionQuestionID: q.ID,
			Payload:           payload,
			IsCorrect:         r.Correct,
			Score:             r.Score,
			Feedback:          r.Feedback,
			UpdatedAt:         now,
		})
	}

	if err := s.store.SaveGrading(ctx, ss.ID, answers, now); err != nil {
		return nil, err
	}
	ss.Status = domain.SessionStatusSubmitted
	ss.SubmittedAt = &now

	res := aggregate(ss, graded, now)

	telemetry.SessionsGraded.WithLabelValues(res.Grade.Letter).Inc()
	telemetry.ScorePercentage.Observe(res.ScorePercentage)
	slog.InfoContext(ctx, "score: session graded",
		"session_id", ss.ID,
		"quiz_id", ss.QuizID,
		"percentage", res.ScorePercentage,
		"grade", res.Grade.Letter,
	)

	s.eb.Publish(ctx, domain.EventSessionGraded{Session: *ss, Result: *res})

	return res, nil
}

// GetResult rebuilds the result of a submitted session from its stored answers.
func (s *Service) GetResult(ctx context.Context, sessionID, userID string) (*domain.GradeResult, error) {
	ss, qs, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if ss.Status != domain.SessionStatusSubmitted {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %s has not been submitted", ss.ID))
	}

	stored, err := s.store.ListSessionAnswers(ctx, ss.ID)
	if err != nil {
		return nil, err
	}

	graded := make([]gradedQuestion, 0, len(qs))
	for _, q := range qs {
		g := gradedQuestion{
			q:          q,
			userAnswer: answer.Empty{},
			result:     grading.Result{MaxScore: q.Points},
		}
		if a, ok := stored[q.ID]; ok {
			g.userAnswer = json.RawMessage(a.Payload)
			g.result.Score = a.Score
			g.result.Correct = a.IsCorrect
			g.result.Feedback = a.Feedback
		}
		graded = append(graded, g)
	}

	gradedAt := ss.CreatedAt
	if ss.SubmittedAt != nil {
		gradedAt = *ss.SubmittedAt
	}

	return aggregate(ss, graded, gradedAt), nil
}

func (s *Service) loadOwned(ctx context.Context, sessionID, userID string) (*domain.Session, []domain.SessionQuestion, error) {
	ss, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if ss.UserID != userID {
		return nil, nil, errors.NotFound("session not found: %s", sessionID)
	}

	qs, err := s.store.ListSessionQuestions(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	return ss, qs, nil
}

type gradedQuestion struct {
	q          domain.SessionQuestion
	userAnswer any
	result     grading.Result
}

func aggregate(ss *domain.Session, graded []gradedQuestion, gradedAt time.Time) *domain.GradeResult {
	res := &domain.GradeResult{
		SessionID:      ss.ID,
		QuizID:         ss.QuizID,
		TotalQuestions: len(graded),
		Breakdown:      domain.Breakdown{ByType: make(map[domain.QuestionType]domain.TypeBreakdown)},
		PerQuestion:    make([]domain.QuestionResult, 0, len(graded)),
		GradedAt:       gradedAt,
	}

	var (
		total    = decimal.Zero
		maxScore = decimal.Zero
		byType   = make(map[domain.QuestionType][2]decimal.Decimal)
	)
	for _, g := range graded {
		sc := decimal.NewFromFloat(g.result.Score)
		mx := decimal.NewFromFloat(g.result.MaxScore)
		total = total.Add(sc)
		maxScore = maxScore.Add(mx)

		t := byType[g.q.Type]
		byType[g.q.Type] = [2]decimal.Decimal{t[0].Add(sc), t[1].Add(mx)}

		tb := res.Breakdown.ByType[g.q.Type]
		tb.Total++
		if g.result.Correct {
			tb.Correct++
			res.CorrectCount++
		}
		res.Breakdown.ByType[g.q.Type] = tb

		res.PerQuestion = append(res.PerQuestion, domain.QuestionResult{
			SessionQuestionID: g.q.ID,
			Index:             g.q.DisplayIndex,
			Type:              g.q.Type,
			UserAnswer:        g.userAnswer,
			IsCorrect:         g.result.Correct,
			Score:             g.result.Score,
			MaxScore:          g.result.MaxScore,
			Feedback:          g.result.Feedback,
		})
	}

	for qt, sums := range byType {
		tb := res.Breakdown.ByType[qt]
		tb.Score = sums[0].Round(4).InexactFloat64()
		tb.MaxScore = sums[1].Round(4).InexactFloat64()
		res.Breakdown.ByType[qt] = tb
	}

	res.TotalScore = total.Round(4).InexactFloat64()
	res.MaxScore = maxScore.Round(4).InexactFloat64()
	pct := decimal.Zero
	if maxScore.IsPositive() {
		pct = total.Mul(decimal.NewFromInt(100)).Div(maxScore)
	}
	// The letter is taken before rounding so 89.995 stays below the A boundary.
	res.ScorePercentage = pct.Round(2).InexactFloat64()
	res.Grade = domain.Grade{
		Letter:     LetterGrade(pct.InexactFloat64()),
		Percentage: res.ScorePercentage,
	}

	return res
}

// LetterGrade maps a percentage onto A (90 and above), B (80), C (70), D (60) or F.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}
