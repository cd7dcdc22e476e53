package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/errors"
)

// SaveGrading upserts one answer per question and marks the session submitted, in one
// transaction. Saving the same answers again leaves the rows unchanged apart from timestamps.
func (s *Store) SaveGrading(ctx context.Context, sessionID string, answers []domain.SessionAnswer, submittedAt time.Time) error {
	const (
		upsAnswerStmt = `
INSERT INTO session_answers (session_id, session_question_id, payload, is_correct, score, feedback, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (session_id, session_question_id) DO UPDATE SET
  payload = EXCLUDED.payload,
  is_correct = EXCLUDED.is_correct,
  score = EXCLUDED.score,
  feedback = EXCLUDED.feedback,
  updated_at = EXCLUDED.updated_at;`
		updSessionStmt = `UPDATE quiz_sessions SET status = $1, submitted_at = $2 WHERE id = $3;`
	)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, updSessionStmt, string(domain.SessionStatusSubmitted), submittedAt.UnixMilli(), sessionID)
		if err != nil {
			return fmt.Errorf("update session status: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update session status: %w", err)
		} else if n == 0 {
			return errors.NotFound("session not found: %s", sessionID)
		}

		for _, a := range answers {
			payload := string(a.Payload)
			if payload == "" {
				payload = "null"
			}

			_, err := tx.ExecContext(ctx, upsAnswerStmt,
				sessionID, a.SessionQuestionID, payload, a.IsCorrect, a.Score, a.Feedback, a.UpdatedAt.UnixMilli())
			if err != nil {
				return fmt.Errorf("upsert answer %s: %w", a.SessionQuestionID, err)
			}
		}

		return nil
	})
}

// ListSessionAnswers returns the stored answers of a session keyed by session question id.
func (s *Store) ListSessionAnswers(ctx context.Context, sessionID string) (map[string]domain.SessionAnswer, error) {
	const stmt = `
SELECT session_question_id, payload, is_correct, score, feedback, updated_at
FROM session_answers WHERE session_id = $1;`

	rows, err := s.db.QueryContext(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select session answers: %w", err)
	}
	defer rows.Close()

	answers := make(map[string]domain.SessionAnswer)
	for rows.Next() {
		var (
			a         domain.SessionAnswer
			payload   string
			updatedAt int64
		)
		if err := rows.Scan(&a.SessionQuestionID, &payload, &a.IsCorrect, &a.Score, &a.Feedback, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session answer: %w", err)
		}

		a.SessionID = sessionID
		a.Payload = []byte(payload)
		a.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		answers[a.SessionQuestionID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session answers: %w", err)
	}

	return answers, nil
}
