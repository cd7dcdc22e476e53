package domain

import (
	"encoding/json"
	"time"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusSubmitted SessionStatus = "submitted"
)

// Session is one user's attempt at a canonical quiz. Seed is fixed at creation.
type Session struct {
	ID          string
	QuizID      string
	UserID      string
	Seed        int64
	Shuffle     bool
	Status      SessionStatus
	CreatedAt   time.Time
	SubmittedAt *time.Time
}

// PublicOption is an answer-redacted choice shown to the user.
type PublicOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SessionQuestion is a materialized question of a session. Private and SourceIndex are
// server-only and never serialized.
type SessionQuestion struct {
	ID           string
	SessionID    string
	DisplayIndex int
	Type         QuestionType
	Stem         string
	Options      []PublicOption
	BlankCount   int
	Citations    []Source
	Points       float64
	Private      PrivatePayload `json:"-"`
	SourceIndex  int            `json:"-"`
}

// SessionAnswer is the graded answer of one session question.
type SessionAnswer struct {
	SessionID         string
	SessionQuestionID string
	Payload           json.RawMessage
	IsCorrect         bool
	Score             float64
	Feedback          string
	UpdatedAt         time.Time
}

// SessionView is the user-facing view of a session. It never carries correct answers.
type SessionView struct {
	SessionID string         `json:"session_id"`
	QuizID    string         `json:"quiz_id"`
	Status    SessionStatus  `json:"status"`
	Questions []QuestionView `json:"questions"`
}

type QuestionView struct {
	SessionQuestionID string         `json:"session_question_id"`
	Index             int            `json:"index"`
	Type              QuestionType   `json:"type"`
	Stem              string         `json:"stem"`
	Options           []PublicOption `json:"options,omitempty"`
	BlankCount        int            `json:"blank_count,omitempty"`
	Points            float64        `json:"points"`
	Citations         []Source       `json:"citations"`
}

func NewSessionView(s Session, qs []SessionQuestion) SessionView {
	v := SessionView{
		SessionID: s.ID,
		QuizID:    s.QuizID,
		Status:    s.Status,
		Questions: make([]QuestionView, 0, len(qs)),
	}

	for _, q := range qs {
		citations := q.Citations
		if citations == nil {
			citations = []Source{}
		}
		v.Questions = append(v.Questions, QuestionView{
			SessionQuestionID: q.ID,
			Index:             q.DisplayIndex,
			Type:              q.Type,
			Stem:              q.Stem,
			Options:           q.Options,
			BlankCount:        q.BlankCount,
			Points:            q.Points,
			Citations:         citations,
		})
	}

	return v
}
