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

// CreateSession stores a session with all of its materialized questions in one transaction.
func (s *Store) CreateSession(ctx context.Context, ss *domain.Session, qs []domain.SessionQuestion) error {
	const (
		insSessionStmt = `
INSERT INTO quiz_sessions (id, quiz_id, user_id, seed, shuffle, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`
		insQuestionStmt = `
INSERT INTO session_questions (id, session_id, display_index, q_type, stem, options_json, blank_count, citations_json, points, private_payload, source_index)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`
	)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insSessionStmt,
			ss.ID, ss.QuizID, ss.UserID, ss.Seed, ss.Shuffle, string(ss.Status), ss.CreatedAt.UnixMilli())
		if err != nil {
			return convertError(fmt.Errorf("insert session: %w", err), "session already exists: %s", ss.ID)
		}

		for _, q := range qs {
			options, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("marshal options: %w", err)
			}
			citations, err := json.Marshal(q.Citations)
			if err != nil {
				return fmt.Errorf("marshal citations: %w", err)
			}
			private, err := domain.MarshalPrivatePayload(q.Private)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, insQuestionStmt,
				q.ID, ss.ID, q.DisplayIndex, string(q.Type), q.Stem, string(options), q.BlankCount,
				string(citations), q.Points, string(private), q.SourceIndex)
			if err != nil {
				return fmt.Errorf("insert session question: %w", err)
			}
		}

		return nil
	})
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	const stmt = `
SELECT id, quiz_id, user_id, seed, shuffle, status, created_at, submitted_at
FROM quiz_sessions WHERE id = $1;`

	var (
		ss          domain.Session
		status      string
		createdAt   int64
		submittedAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, stmt, id).Scan(
		&ss.ID, &ss.QuizID, &ss.UserID, &ss.Seed, &ss.Shuffle, &status, &createdAt, &submittedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	ss.Status = domain.SessionStatus(status)
	ss.CreatedAt = time.UnixMilli(createdAt).UTC()
	if submittedAt.Valid {
		t := time.UnixMilli(submittedAt.Int64).UTC()
		ss.SubmittedAt = &t
	}

	return &ss, nil
}

// ListSessionQuestions returns the questions of a session in display order, private payloads
// included.
func (s *Store) ListSessionQuestions(ctx context.Context, sessionID string) ([]domain.SessionQuestion, error) {
	const stmt = `
SELECT id, display_index, q_type, stem, options_json, blank_count, citations_json, points, private_payload, source_index
FROM session_questions WHERE session_id = $1 ORDER BY display_index;`

	rows, err := s.db.QueryContext(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select session questions: %w", err)
	}
	defer rows.Close()

	var qs []domain.SessionQuestion
	for rows.Next() {
		var (
			q                           domain.SessionQuestion
			qType                       string
			options, citations, private string
		)
		if err := rows.Scan(&q.ID, &q.DisplayIndex, &qType, &q.Stem, &options, &q.BlankCount,
			&citations, &q.Points, &private, &q.SourceIndex); err != nil {
			return nil, fmt.Errorf("scan session question: %w", err)
		}

		q.SessionID = sessionID
		q.Type = domain.QuestionType(qType)
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		if err := json.Unmarshal([]byte(citations), &q.Citations); err != nil {
			return nil, fmt.Errorf("unmarshal citations: %w", err)
		}
		if q.Private, err = domain.UnmarshalPrivatePayload([]byte(private)); err != nil {
			return nil, err
		}

		qs = append(qs, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session questions: %w", err)
	}

	return qs, nil
}
