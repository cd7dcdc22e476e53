package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/errors"
	"github.com/victornm/quizforge/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func newQuiz(id string) *domain.Quiz {
	answer := true
	return &domain.Quiz{
		ID:      id,
		Title:   "Rivers",
		OwnerID: "owner",
		Batch: domain.QuestionBatch{
			OutputLanguage: "en",
			Questions: []domain.Question{
				{
					Type:   domain.QuestionTypeTF,
					Stem:   "The Seine flows through Paris.",
					Answer: &answer,
					Metadata: domain.QuestionMetadata{Sources: []domain.Source{
						{ContextID: "c1", Quote: "The Seine flows through Paris."},
					}},
				},
			},
			GenerationMetadata: domain.GenerationMetadata{
				Model:   "m1",
				Repairs: []domain.RepairAttempt{{Class: "citation", Reason: "quote missing"}},
			},
		},
		Status:    domain.QuizStatusReady,
		CreatedAt: time.UnixMilli(1700000000000).UTC(),
	}
}

func newSession(id, quizID string) (*domain.Session, []domain.SessionQuestion) {
	ss := &domain.Session{
		ID:        id,
		QuizID:    quizID,
		UserID:    "u1",
		Seed:      -42,
		Shuffle:   true,
		Status:    domain.SessionStatusActive,
		CreatedAt: time.UnixMilli(1700000001000).UTC(),
	}

	qs := []domain.SessionQuestion{
		{
			ID:           id + "-q1",
			SessionID:    id,
			DisplayIndex: 0,
			Type:         domain.QuestionTypeMCQ,
			Stem:         "What is the capital of France?",
			Options:      []domain.PublicOption{{ID: "o_1", Text: "Paris"}, {ID: "o_2", Text: "Lyon"}},
			Citations:    []domain.Source{{ContextID: "c1", Quote: "Paris"}},
			Points:       2,
			Private:      domain.MCQKey{CorrectIDs: []string{"o_1"}, OptionText: map[string]string{"o_1": "Paris", "o_2": "Lyon"}},
			SourceIndex:  1,
		},
		{
			ID:           id + "-q2",
			SessionID:    id,
			DisplayIndex: 1,
			Type:         domain.QuestionTypeFIB,
			Stem:         "The river is ____.",
			BlankCount:   1,
			Citations:    []domain.Source{{ContextID: "c1", Quote: "Seine"}},
			Points:       1,
			Private:      domain.FIBKey{Accepted: [][]string{{"seine"}}},
			SourceIndex:  0,
		},
	}

	return ss, qs
}

func TestStore_Quiz(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()

	q := newQuiz("q1")
	require.NoError(t, s.CreateQuiz(ctx, q))

	got, err := s.GetQuiz(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, q, got)

	err = s.CreateQuiz(ctx, q)
	assert.True(t, errors.HasCode(err, errors.CodeAlreadyExists), "duplicate quiz should already exist: %v", err)

	_, err = s.GetQuiz(ctx, "missing")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	require.NoError(t, s.SetQuizStatus(ctx, "q1", domain.QuizStatusArchived))
	got, err = s.GetQuiz(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, domain.QuizStatusArchived, got.Status)

	assert.True(t, errors.HasCode(s.SetQuizStatus(ctx, "missing", domain.QuizStatusArchived), errors.CodeNotFound))
}

func TestStore_Session(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateQuiz(ctx, newQuiz("q1")))

	ss, qs := newSession("s1", "q1")
	require.NoError(t, s.CreateSession(ctx, ss, qs))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, ss, got)

	gotQs, err := s.ListSessionQuestions(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, qs, gotQs)

	_, err = s.GetSession(ctx, "missing")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestStore_CreateSessionIsAtomic(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateQuiz(ctx, newQuiz("q1")))

	ss, qs := newSession("s1", "q1")
	qs[1].ID = qs[0].ID

	require.Error(t, s.CreateSession(ctx, ss, qs))

	_, err := s.GetSession(ctx, "s1")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound), "session row should be rolled back")
}

func TestStore_SaveGrading(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateQuiz(ctx, newQuiz("q1")))
	ss, qs := newSession("s1", "q1")
	require.NoError(t, s.CreateSession(ctx, ss, qs))

	now := time.UnixMilli(1700000002000).UTC()
	answers := []domain.SessionAnswer{
		{SessionQuestionID: qs[0].ID, Payload: json.RawMessage(`{"selected_option_id":"o_2"}`), Score: 0, Feedback: "Incorrect.", UpdatedAt: now},
		{SessionQuestionID: qs[1].ID, Payload: json.RawMessage(`{"blanks":["seine"]}`), IsCorrect: true, Score: 1, Feedback: "Correct.", UpdatedAt: now},
	}
	require.NoError(t, s.SaveGrading(ctx, "s1", answers, now))

	answers[0].Payload = json.RawMessage(`{"selected_option_id":"o_1"}`)
	answers[0].IsCorrect, answers[0].Score, answers[0].Feedback = true, 2, "Correct."
	require.NoError(t, s.SaveGrading(ctx, "s1", answers, now))

	got, err := s.ListSessionAnswers(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[qs[0].ID].IsCorrect)
	assert.Equal(t, 2.0, got[qs[0].ID].Score)
	assert.JSONEq(t, `{"selected_option_id":"o_1"}`, string(got[qs[0].ID].Payload))
	assert.Equal(t, now, got[qs[1].ID].UpdatedAt)

	sess, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusSubmitted, sess.Status)
	require.NotNil(t, sess.SubmittedAt)
	assert.Equal(t, now, *sess.SubmittedAt)

	err = s.SaveGrading(ctx, "missing", nil, now)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}
