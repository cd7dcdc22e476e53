// Package api exposes the quiz services over HTTP and gRPC and forwards domain events to users
// through Redis pub/sub.
package api

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/errors"
	"github.com/victornm/quizforge/internal/event"
	"github.com/victornm/quizforge/internal/generation"
	"github.com/victornm/quizforge/internal/leaderboard"
	"github.com/victornm/quizforge/internal/score"
	"github.com/victornm/quizforge/internal/session"
	"github.com/victornm/quizforge/internal/validation"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(validation.JSONName)
	}
}

type Config struct {
	HTTP         gin.IRouter
	GRPC         *grpc.Server
	EventBus     *event.Bus
	Generation   *generation.Service
	Quizzes      QuizReader
	Documents    DocumentWriter
	Session      *session.Service
	Score        *score.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type QuizReader interface {
	GetQuiz(ctx context.Context, id string) (*domain.Quiz, error)
}

type DocumentWriter interface {
	PutDocument(ctx context.Context, documentID, text string) (int, error)
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	gs      *generation.Service
	quizzes QuizReader
	docs    DocumentWriter
	qss     *session.Service
	ss      *score.Service
	ls      *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		gs:      c.Generation,
		quizzes: c.Quizzes,
		docs:    c.Documents,
		qss:     c.Session,
		ss:      c.Score,
		ls:      c.Leaderboard,
		redis:   c.Redis,
		prefix:  c.PubsubPrefix,
	}

	if c.HTTP != nil {
		a.registerHTTP(c.HTTP)
	}

	if c.GRPC != nil {
		c.GRPC.RegisterService(&quizServiceDesc, &grpcServer{api: a})
	}

	// Register event handlers
	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameSessionGraded, func(ctx context.Context, e event.Event) error {
			return a.PublishSessionGraded(ctx, e.(domain.EventSessionGraded))
		})
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return a
}

type (
	PutDocumentRequest struct {
		DocumentID string `json:"document_id" binding:"required"`
		Text       string `json:"text" binding:"required"`
	}

	PutDocumentResponse struct {
		DocumentID string `json:"document_id"`
		Chunks     int    `json:"chunks"`
	}

	GenerateQuizRequest struct {
		UserID       string   `json:"user_id"`
		Title        string   `json:"title"`
		DocumentIDs  []string `json:"document_ids" binding:"required,min=1,dive,required"`
		NumQuestions int      `json:"num_questions" binding:"omitempty,min=1,max=50"`
		AllowedTypes []string `json:"allowed_types" binding:"dive,required"`
		Difficulty   string   `json:"difficulty"`
	}

	GetQuizRequest struct {
		QuizID string `json:"quiz_id" binding:"required"`
	}

	CreateSessionRequest struct {
		QuizID  string `json:"quiz_id" binding:"required"`
		UserID  string `json:"user_id" binding:"required"`
		Shuffle *bool  `json:"shuffle"`
	}

	GetSessionRequest struct {
		SessionID string `json:"session_id" binding:"required"`
		UserID    string `json:"user_id" binding:"required"`
	}

	SubmitAnswersRequest struct {
		SessionID string         `json:"session_id" binding:"required"`
		UserID    string         `json:"user_id" binding:"required"`
		Answers   map[string]any `json:"answers"`
	}

	GetLeaderboardRequest struct {
		QuizID string `json:"quiz_id" binding:"required"`
	}
)

func (a *API) putDocument(ctx context.Context, req PutDocumentRequest) (*PutDocumentResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	n, err := a.docs.PutDocument(ctx, req.DocumentID, req.Text)
	if err != nil {
		return nil, err
	}

	return &PutDocumentResponse{DocumentID: req.DocumentID, Chunks: n}, nil
}

func (a *API) generateQuiz(ctx context.Context, req GenerateQuizRequest) (*domain.QuizSummary, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	types := make([]domain.QuestionType, 0, len(req.AllowedTypes))
	for _, s := range req.AllowedTypes {
		t, ok := domain.ParseQuestionType(s)
		if !ok {
			return nil, errors.InvalidArgument("unknown question type: %q", s)
		}
		types = append(types, t)
	}

	q, err := a.gs.GenerateQuiz(ctx, generation.GenerateQuizRequest{
		OwnerID:      req.UserID,
		Title:        req.Title,
		DocumentIDs:  req.DocumentIDs,
		NumQuestions: req.NumQuestions,
		AllowedTypes: types,
		Difficulty:   req.Difficulty,
	})
	if err != nil {
		return nil, err
	}

	sum := q.Summary()
	return &sum, nil
}

func (a *API) getQuiz(ctx context.Context, req GetQuizRequest) (*domain.QuizSummary, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	q, err := a.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	sum := q.Summary()
	return &sum, nil
}

func (a *API) createSession(ctx context.Context, req CreateSessionRequest) (*domain.SessionView, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	shuffle := true
	if req.Shuffle != nil {
		shuffle = *req.Shuffle
	}

	ss, qs, err := a.qss.CreateSession(ctx, session.CreateSessionRequest{
		QuizID:  req.QuizID,
		UserID:  req.UserID,
		Shuffle: shuffle,
	})
	if err != nil {
		return nil, err
	}

	v := domain.NewSessionView(*ss, qs)
	return &v, nil
}

func (a *API) getSession(ctx context.Context, req GetSessionRequest) (*domain.SessionView, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	return a.qss.GetSessionView(ctx, req.SessionID, req.UserID)
}

func (a *API) submitAnswers(ctx context.Context, req SubmitAnswersRequest) (*domain.GradeResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	return a.ss.GradeSession(ctx, score.GradeSessionRequest{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Answers:   req.Answers,
	})
}

func (a *API) getResult(ctx context.Context, req GetSessionRequest) (*domain.GradeResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	return a.ss.GetResult(ctx, req.SessionID, req.UserID)
}

func (a *API) getLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	return a.ls.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		QuizID: req.QuizID,
	})
}

// validateRequest runs the binding rules of a request. A missing user id is reported as
// unauthenticated, every other violation as an invalid argument.
func validateRequest(req any) error {
	err := binding.Validator.ValidateStruct(req)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !stderrors.As(err, &errs) {
		return errors.InvalidArgument("%v", err)
	}

	problems := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Field() == "user_id" && fe.Tag() == "required" {
			return errors.New(errors.CodeUnauthenticated, errors.WithMessagef("user id is required"))
		}
		problems = append(problems, validation.FieldPath(fe)+" "+validation.Rule(fe))
	}

	return errors.InvalidArgument("%s", strings.Join(problems, "; "))
}
