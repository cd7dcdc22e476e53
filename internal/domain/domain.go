package domain

import (
	"strings"
	"time"
)

// QuestionType is the canonical type of a quiz question.
type QuestionType string

const (
	QuestionTypeMCQ QuestionType = "MCQ"
	QuestionTypeTF  QuestionType = "TF"
	QuestionTypeFIB QuestionType = "FIB"
	QuestionTypeSA  QuestionType = "SA"
)

// AllQuestionTypes lists every supported question type in a stable order.
var AllQuestionTypes = []QuestionType{QuestionTypeMCQ, QuestionTypeTF, QuestionTypeFIB, QuestionTypeSA}

var questionTypeAliases = map[string]QuestionType{
	"mcq":             QuestionTypeMCQ,
	"multiple_choice": QuestionTypeMCQ,
	"multiplechoice":  QuestionTypeMCQ,
	"mcq_single":      QuestionTypeMCQ,
	"single_choice":   QuestionTypeMCQ,
	"tf":              QuestionTypeTF,
	"true_false":      QuestionTypeTF,
	"truefalse":       QuestionTypeTF,
	"boolean":         QuestionTypeTF,
	"fib":             QuestionTypeFIB,
	"fill_in_blank":   QuestionTypeFIB,
	"fill_in_blanks":  QuestionTypeFIB,
	"fill_blank":      QuestionTypeFIB,
	"cloze":           QuestionTypeFIB,
	"sa":              QuestionTypeSA,
	"short_answer":    QuestionTypeSA,
	"shortanswer":     QuestionTypeSA,
	"open":            QuestionTypeSA,
	"open_ended":      QuestionTypeSA,
}

// ParseQuestionType canonicalizes a question type or one of its aliases.
func ParseQuestionType(s string) (QuestionType, bool) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer("-", "_", " ", "_").Replace(k)
	t, ok := questionTypeAliases[k]
	return t, ok
}

// ContextBlock is a numbered, citeable snippet of source text.
type ContextBlock struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Source is a citation of a context block backing a question.
type Source struct {
	ContextID string `json:"context_id"`
	Quote     string `json:"quote"`
}

type QuestionMetadata struct {
	Sources    []Source `json:"sources"`
	Difficulty string   `json:"difficulty,omitempty"`
}

type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

// Blank lists the accepted answers of one fill-in-the-blank gap.
type Blank struct {
	Accepted []string `json:"accepted"`
}

// KeyPoint is one weighted criterion of a short-answer rubric. A key point matches when any
// literal alternative (or Text itself) or any regular expression pattern matches the answer.
type KeyPoint struct {
	Text         string   `json:"text"`
	Weight       float64  `json:"weight"`
	Alternatives []string `json:"alternatives,omitempty"`
	Patterns     []string `json:"patterns,omitempty"`
}

type Rubric struct {
	KeyPoints []KeyPoint `json:"key_points"`
	Threshold float64    `json:"threshold,omitempty"`
	MinWords  int        `json:"min_words,omitempty"`
}

// Question is a validated question of a canonical quiz.
type Question struct {
	Type             QuestionType     `json:"type"`
	Stem             string           `json:"stem"`
	Options          []Option         `json:"options,omitempty"`
	CorrectOptionIDs []string         `json:"correct_option_ids,omitempty"`
	CorrectIndex     *int             `json:"correct_index,omitempty"`
	Answer           *bool            `json:"answer,omitempty"`
	Blanks           []Blank          `json:"blanks,omitempty"`
	Rubric           *Rubric          `json:"rubric,omitempty"`
	Explanation      string           `json:"explanation,omitempty"`
	Points           float64          `json:"points,omitempty"`
	Metadata         QuestionMetadata `json:"metadata"`
}

const DefaultPoints = 1.0

// MaxPoints returns the points awarded for a fully correct answer.
func (q Question) MaxPoints() float64 {
	if q.Points > 0 {
		return q.Points
	}
	return DefaultPoints
}

// RepairAttempt records one repair re-prompt issued while validating a generated batch.
type RepairAttempt struct {
	Class  string `json:"class"`
	Reason string `json:"reason"`
}

type GenerationMetadata struct {
	Model       string          `json:"model,omitempty"`
	DocumentIDs []string        `json:"document_ids,omitempty"`
	Repairs     []RepairAttempt `json:"repairs,omitempty"`
	GeneratedAt time.Time       `json:"generated_at,omitempty"`
	Extra       map[string]any  `json:"extra,omitempty"`
}

// QuestionBatch is a set of generated questions. It becomes canonical once validated.
type QuestionBatch struct {
	Questions          []Question         `json:"questions"`
	OutputLanguage     string             `json:"output_language"`
	GenerationMetadata GenerationMetadata `json:"generation_metadata"`
}

type QuizStatus string

const (
	QuizStatusReady    QuizStatus = "ready"
	QuizStatusArchived QuizStatus = "archived"
)

// Quiz is a canonical, validated quiz. Only its status may change after creation.
type Quiz struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	OwnerID   string        `json:"owner_id"`
	Batch     QuestionBatch `json:"batch"`
	Status    QuizStatus    `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// QuizSummary is the answer-free view of a quiz.
type QuizSummary struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Status         QuizStatus     `json:"status"`
	OutputLanguage string         `json:"output_language"`
	QuestionCount  int            `json:"question_count"`
	Types          []QuestionType `json:"types"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (q Quiz) Summary() QuizSummary {
	seen := make(map[QuestionType]bool)
	types := make([]QuestionType, 0, len(AllQuestionTypes))
	for _, qq := range q.Batch.Questions {
		if !seen[qq.Type] {
			seen[qq.Type] = true
			types = append(types, qq.Type)
		}
	}

	return QuizSummary{
		ID:             q.ID,
		Title:          q.Title,
		Status:         q.Status,
		OutputLanguage: q.Batch.OutputLanguage,
		QuestionCount:  len(q.Batch.Questions),
		Types:          types,
		CreatedAt:      q.CreatedAt,
	}
}

// Leaderboard lists users and their best score percentage within a quiz, sorted descending.
type Leaderboard struct {
	QuizID  string             `json:"quiz_id"`
	Entries []LeaderboardEntry `json:"entries"`
}

type LeaderboardEntry struct {
	UserID     string  `json:"user_id"`
	Percentage float64 `json:"percentage"`
}
