// Package session materializes per-user attempts of a quiz: shuffled, answer-redacted question
// sets whose answer keys stay on the server.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/errors"
	"github.com/victornm/quizforge/internal/event"
	"github.com/victornm/quizforge/internal/telemetry"
)

type Store interface {
	GetQuiz(ctx context.Context, id string) (*domain.Quiz, error)
	CreateSession(ctx context.Context, ss *domain.Session, qs []domain.SessionQuestion) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessionQuestions(ctx context.Context, sessionID string) ([]domain.SessionQuestion, error)
}

type Config struct {
	Store    Store
	EventBus *event.Bus
}

type Service struct {
	store Store
	eb    *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		store: c.Store,
		eb:    c.EventBus,
	}
}

// CreateSessionRequest represents a request to start a new attempt at a quiz.
type CreateSessionRequest struct {
	QuizID string
	UserID string
	// Shuffle permutes the question order and the options of every MCQ.
	Shuffle bool
}

// CreateSession materializes and stores a new session. The returned questions include their
// private keys; use domain.NewSessionView before handing them to a user.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, []domain.SessionQuestion, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, nil, errors.InvalidArgument("user id is required")
	}

	quiz, err := s.store.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, nil, err
	}
	if quiz.Status != domain.QuizStatusReady {
		return nil, nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("quiz %s is %s", quiz.ID, quiz.Status))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, nil, fmt.Errorf("generate session ID: %w", err)
	}

	seed, qs, err := Materialize(quiz, id.String(), req.Shuffle)
	if err != nil {
		return nil, nil, errors.Internal(err)
	}

	ss := &domain.Session{
		ID:        id.String(),
		QuizID:    quiz.ID,
		UserID:    req.UserID,
		Seed:      seed,
		Shuffle:   req.Shuffle,
		Status:    domain.SessionStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateSession(ctx, ss, qs); err != nil {
		return nil, nil, err
	}

	telemetry.SessionsCreated.Inc()
	slog.InfoContext(ctx, "session: created",
		"session_id", ss.ID,
		"quiz_id", ss.QuizID,
		"shuffle", ss.Shuffle,
	)

	s.eb.Publish(ctx, domain.EventSessionCreated{Session: *ss})

	return ss, qs, nil
}

// GetSessionView returns the user-facing view of a session. Sessions of other users are reported
// as not found.
func (s *Service) GetSessionView(ctx context.Context, sessionID, userID string) (*domain.SessionView, error) {
	ss, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ss.UserID != userID {
		return nil, errors.NotFound("session not found: %s", sessionID)
	}

	qs, err := s.store.ListSessionQuestions(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	v := domain.NewSessionView(*ss, qs)
	return &v, nil
}
