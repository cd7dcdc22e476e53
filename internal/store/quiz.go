package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/errors"
)

func (s *Store) CreateQuiz(ctx context.Context, q *domain.Quiz) error {
	batch, err := json.Marshal(q.Batch)
	if err != nil {
		return fmt.Errorf("marshal quiz batch: %w", err)
	}

	const stmt = `INSERT INTO quizzes (id, title, owner_id, batch_json, status, created_at) VALUES ($1, $2, $3, $4, $5, $6);`

	_, err = s.db.ExecContext(ctx, stmt, q.ID, q.Title, q.OwnerID, string(batch), string(q.Status), q.CreatedAt.UnixMilli())
	if err != nil {
		return convertError(fmt.Errorf("insert quiz: %w", err), "quiz already exists: %s", q.ID)
	}

	return nil
}

// GetQuiz returns the canonical quiz, answers included. Callers serving users must redact it.
func (s *Store) GetQuiz(ctx context.Context, id string) (*domain.Quiz, error) {
	const stmt = `SELECT id, title, owner_id, batch_json, status, created_at FROM quizzes WHERE id = $1;`

	var (
		q         domain.Quiz
		batch     string
		status    string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, stmt, id).Scan(&q.ID, &q.Title, &q.OwnerID, &batch, &status, &createdAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("quiz not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select quiz: %w", err)
	}

	if err := json.Unmarshal([]byte(batch), &q.Batch); err != nil {
		return nil, fmt.Errorf("unmarshal quiz batch: %w", err)
	}
	q.Status = domain.QuizStatus(status)
	q.CreatedAt = time.UnixMilli(createdAt).UTC()

	return &q, nil
}

// SetQuizStatus changes the status of a quiz, the only mutable part of it.
func (s *Store) SetQuizStatus(ctx context.Context, id string, status domain.QuizStatus) error {
	const stmt = `UPDATE quizzes SET status = $1 WHERE id = $2;`

	res, err := s.db.ExecContext(ctx, stmt, string(status), id)
	if err != nil {
		return fmt.Errorf("update quiz status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update quiz status: %w", err)
	}
	if n == 0 {
		return errors.NotFound("quiz not found: %s", id)
	}

	return nil
}
