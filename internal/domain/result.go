package domain

import "time"

type Grade struct {
	Letter     string  `json:"letter"`
	Percentage float64 `json:"percentage"`
}

type TypeBreakdown struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
}

type Breakdown struct {
	ByType map[QuestionType]TypeBreakdown `json:"by_type"`
}

// QuestionResult is the graded detail of one question. UserAnswer is the sanitized,
// normalized form of what the user submitted.
type QuestionResult struct {
	SessionQuestionID string       `json:"session_question_id"`
	Index             int          `json:"index"`
	Type              QuestionType `json:"type"`
	UserAnswer        any          `json:"user_answer"`
	IsCorrect         bool         `json:"is_correct"`
	Score             float64      `json:"score"`
	MaxScore          float64      `json:"max_score"`
	Feedback          string       `json:"feedback"`
}

// GradeResult is the outcome of grading a session.
type GradeResult struct {
	SessionID       string           `json:"session_id"`
	QuizID          string           `json:"quiz_id"`
	TotalScore      float64          `json:"total_score"`
	MaxScore        float64          `json:"max_score"`
	ScorePercentage float64          `json:"score_percentage"`
	CorrectCount    int              `json:"correct_count"`
	TotalQuestions  int              `json:"total_questions"`
	Grade           Grade            `json:"grade"`
	Breakdown       Breakdown        `json:"breakdown"`
	PerQuestion     []QuestionResult `json:"per_question"`
	GradedAt        time.Time        `json:"graded_at"`
}
