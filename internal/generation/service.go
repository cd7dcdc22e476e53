// Package generation turns documents into canonical quizzes: it prompts the language model,
// validates what comes back and repairs it within a fixed budget.
package generation

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
	"github.com/victornm/quizforge/internal/validation"
)

const (
	defaultNumQuestions = 5
	defaultTitle        = "Untitled quiz"
)

// BlockSource returns the numbered context blocks of a set of documents.
type BlockSource interface {
	Blocks(ctx context.Context, documentIDs []string) ([]domain.ContextBlock, error)
}

type QuizStore interface {
	CreateQuiz(ctx context.Context, q *domain.Quiz) error
}

type Config struct {
	Generator   Generator
	Blocks      BlockSource
	Store       QuizStore
	EventBus    *event.Bus
	Detector    validation.LanguageDetector
	Validation  validation.Config
	Model       string
	CallTimeout time.Duration
}

type Service struct {
	blocks BlockSource
	store  QuizStore
	eb     *event.Bus
	v      *validation.Validator
	coord  *Coordinator
	model  string
}

func NewService(c Config) *Service {
	v := validation.NewValidator(c.Validation, c.Detector)

	return &Service{
		blocks: c.Blocks,
		store:  c.Store,
		eb:     c.EventBus,
		v:      v,
		coord:  NewCoordinator(v, c.Generator, c.CallTimeout),
		model:  c.Model,
	}
}

// GenerateQuizRequest represents a request to generate a quiz from a set of documents.
type GenerateQuizRequest struct {
	OwnerID     string   `json:"owner_id"`
	Title       string   `json:"title"`
	DocumentIDs []string `json:"document_ids" validate:"min=1,dive,required"`
	// NumQuestions defaults to 5.
	NumQuestions int `json:"num_questions" validate:"min=1,max=50"`
	// AllowedTypes defaults to every question type.
	AllowedTypes []domain.QuestionType `json:"allowed_types"`
	Difficulty   string                `json:"difficulty"`
}

func (r *GenerateQuizRequest) normalize() error {
	if r.NumQuestions == 0 {
		r.NumQuestions = defaultNumQuestions
	}

	if problems := validation.CheckStruct(r); len(problems) > 0 {
		return errors.InvalidArgument("%s", strings.Join(problems, "; "))
	}

	if len(r.AllowedTypes) == 0 {
		r.AllowedTypes = domain.AllQuestionTypes
	}

	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		r.Title = defaultTitle
	}

	return nil
}

// GenerateQuiz generates, validates and stores a quiz. The model is called once plus at most one
// repair per validation failure class.
func (s *Service) GenerateQuiz(ctx context.Context, req GenerateQuizRequest) (q *domain.Quiz, err error) {
	defer func() {
		outcome := "ok"
		switch {
		case errors.HasCode(err, errors.CodeFailedPrecondition):
			outcome = "invalid"
		case err != nil:
			outcome = "error"
		}
		telemetry.GenerationTotal.WithLabelValues(outcome).Inc()
	}()

	if err := req.normalize(); err != nil {
		return nil, err
	}

	blocks, err := s.blocks.Blocks(ctx, req.DocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("load context blocks: %w", err)
	}
	if len(blocks) == 0 {
		return nil, errors.NotFound("no context found for documents %v", req.DocumentIDs)
	}

	genReq := Request{
		AllowedTypes: req.AllowedTypes,
		Blocks:       blocks,
		SystemPrompt: buildSystemPrompt(s.v.Config().MaxQuoteLength),
		UserPrompt:   buildUserPrompt(blocks, req.NumQuestions, req.AllowedTypes, req.Difficulty),
	}

	raw, err := s.coord.Call(ctx, genReq.SystemPrompt, genReq.UserPrompt)
	if err != nil {
		return nil, err
	}

	batch, repairs, err := s.coord.ValidateAndRepair(ctx, raw, genReq)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate quiz ID: %w", err)
	}

	now := time.Now().UTC()
	batch.GenerationMetadata.Model = s.model
	batch.GenerationMetadata.DocumentIDs = req.DocumentIDs
	batch.GenerationMetadata.Repairs = repairs
	batch.GenerationMetadata.GeneratedAt = now

	q = &domain.Quiz{
		ID:        id.String(),
		Title:     req.Title,
		OwnerID:   req.OwnerID,
		Batch:     *batch,
		Status:    domain.QuizStatusReady,
		CreatedAt: now,
	}

	if err := s.store.CreateQuiz(ctx, q); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "generation: quiz created",
		"quiz_id", q.ID,
		"questions", len(batch.Questions),
		"repairs", len(repairs),
	)

	s.eb.Publish(ctx, domain.EventQuizGenerated{Quiz: *q})

	return q, nil
}
