package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/victornm/quizforge/internal/domain"
)

const mcqOptionCount = 4

// blankPlaceholder matches a gap in a fill-in-the-blank stem.
var blankPlaceholder = regexp.MustCompile(`_{3,}|\{\{\s*blank\s*\}\}`)

type rawBatch struct {
	Questions          []json.RawMessage `json:"questions" validate:"min=1"`
	OutputLanguage     string            `json:"output_language" validate:"required"`
	GenerationMetadata map[string]any    `json:"generation_metadata"`
}

type rawQuestion struct {
	Type             string            `json:"type" validate:"required"`
	Stem             string            `json:"stem"`
	Question         string            `json:"question"`
	Options          []json.RawMessage `json:"options"`
	CorrectOptionIDs []string          `json:"correct_option_ids"`
	CorrectOptionID  string            `json:"correct_option_id"`
	CorrectIndex     *int              `json:"correct_index"`
	Answer           json.RawMessage   `json:"answer"`
	Blanks           []json.RawMessage `json:"blanks"`
	Rubric           *rawRubric        `json:"rubric" validate:"-"`
	Explanation      string            `json:"explanation"`
	Points           float64           `json:"points" validate:"gte=0"`
	Difficulty       string            `json:"difficulty"`
	Metadata         struct {
		Sources    []rawSource `json:"sources" validate:"min=1,dive"`
		Difficulty string      `json:"difficulty"`
	} `json:"metadata"`
}

type rawSource struct {
	ContextID string `json:"context_id" validate:"required"`
	Quote     string `json:"quote" validate:"required"`
}

type rawOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Correct   bool   `json:"correct"`
	IsCorrect bool   `json:"is_correct"`
}

type rawRubric struct {
	KeyPoints []rawKeyPoint `json:"key_points" validate:"min=3,dive"`
	Threshold float64       `json:"threshold" validate:"gte=0,lte=1"`
	MinWords  int           `json:"min_words" validate:"gte=0"`
}

type rawKeyPoint struct {
	Text         string   `json:"text"`
	Weight       *float64 `json:"weight" validate:"omitempty,gte=0"`
	Alternatives []string `json:"alternatives"`
	Keywords     []string `json:"keywords"`
	Patterns     []string `json:"patterns"`
}

// ExtractJSON returns the outermost JSON object embedded in model output, tolerating code fences
// and surrounding prose.
func ExtractJSON(raw string) ([]byte, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, false
	}

	b := []byte(raw[start : end+1])
	if !json.Valid(b) {
		return nil, false
	}

	return b, true
}

// ParseBatch runs the structural checks: a JSON object with questions and an output language,
// the common fields of every question, and the type-specific shape. It returns a normalized
// batch or a *SchemaError.
func (v *Validator) ParseBatch(raw string, allowed []domain.QuestionType) (*domain.QuestionBatch, error) {
	b, ok := ExtractJSON(raw)
	if !ok {
		return nil, &SchemaError{Details: []string{"model output does not contain a JSON object"}}
	}

	var rb rawBatch
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&rb); err != nil {
		return nil, &SchemaError{Details: []string{fmt.Sprintf("malformed batch: %v", err)}}
	}

	rb.OutputLanguage = strings.TrimSpace(rb.OutputLanguage)

	var p problems
	p.add(checkStruct("", rb)...)
	if len(p) > 0 {
		return nil, &SchemaError{Details: p}
	}

	allowedSet := make(map[domain.QuestionType]bool, len(allowed))
	for _, t := range allowed {
		allowedSet[t] = true
	}

	batch := &domain.QuestionBatch{
		Questions:      make([]domain.Question, 0, len(rb.Questions)),
		OutputLanguage: rb.OutputLanguage,
		GenerationMetadata: domain.GenerationMetadata{
			Extra: rb.GenerationMetadata,
		},
	}

	for i, rq := range rb.Questions {
		q, ok := v.parseQuestion(i+1, rq, allowedSet, &p)
		if ok {
			batch.Questions = append(batch.Questions, q)
		}
	}

	if len(p) > 0 {
		return nil, &SchemaError{Details: p}
	}

	return batch, nil
}

func (v *Validator) parseQuestion(n int, b json.RawMessage, allowed map[domain.QuestionType]bool, p *problems) (domain.Question, bool) {
	var rq rawQuestion
	if err := json.Unmarshal(b, &rq); err != nil {
		p.addf("question %d: malformed: %v", n, err)
		return domain.Question{}, false
	}

	before := len(*p)
	prefix := fmt.Sprintf("question %d: ", n)

	rq.Type = strings.TrimSpace(rq.Type)
	stem := strings.TrimSpace(rq.Stem)
	if stem == "" {
		stem = strings.TrimSpace(rq.Question)
	}

	sources := make([]domain.Source, len(rq.Metadata.Sources))
	for j := range rq.Metadata.Sources {
		src := &rq.Metadata.Sources[j]
		src.ContextID = strings.TrimSpace(src.ContextID)
		src.Quote = strings.TrimSpace(src.Quote)
		sources[j] = domain.Source{ContextID: src.ContextID, Quote: src.Quote}
	}

	p.add(checkStruct(prefix, rq)...)
	p.add(checkVar(prefix+"stem", stem, fmt.Sprintf("min=%d", v.c.MinStemLength))...)
	for j, s := range sources {
		if s.Quote != "" {
			p.add(checkVar(fmt.Sprintf("%smetadata.sources[%d].quote", prefix, j), s.Quote, fmt.Sprintf("max=%d", v.c.MaxQuoteLength))...)
		}
	}

	t, ok := domain.ParseQuestionType(rq.Type)
	switch {
	case rq.Type == "":
	case !ok:
		p.addf("question %d: unknown type %q", n, rq.Type)
	case !allowed[t]:
		p.addf("question %d: type %s is not allowed", n, t)
	}

	difficulty := rq.Metadata.Difficulty
	if difficulty == "" {
		difficulty = rq.Difficulty
	}

	q := domain.Question{
		Type:        t,
		Stem:        stem,
		Explanation: strings.TrimSpace(rq.Explanation),
		Points:      rq.Points,
		Metadata: domain.QuestionMetadata{
			Sources:    sources,
			Difficulty: difficulty,
		},
	}

	if ok {
		switch t {
		case domain.QuestionTypeMCQ:
			parseMCQ(n, rq, &q, p)
		case domain.QuestionTypeTF:
			parseTF(n, rq, &q, p)
		case domain.QuestionTypeFIB:
			parseFIB(n, rq, &q, p)
		case domain.QuestionTypeSA:
			parseSA(n, rq, &q, p)
		}
	}

	return q, len(*p) == before
}

func parseMCQ(n int, rq rawQuestion, q *domain.Question, p *problems) {
	if bad := checkVar(fmt.Sprintf("question %d: MCQ options", n), rq.Options, fmt.Sprintf("len=%d", mcqOptionCount)); len(bad) > 0 {
		p.add(bad...)
		return
	}

	seen := make(map[string]bool, len(rq.Options))
	opts := make([]domain.Option, 0, len(rq.Options))
	for i, b := range rq.Options {
		o, err := decodeOption(b)
		if err != nil {
			p.addf("question %d: option %d: %v", n, i+1, err)
			return
		}
		if o.ID == "" {
			o.ID = fmt.Sprintf("opt_%d", i+1)
		}
		if seen[o.ID] {
			p.addf("question %d: duplicate option id %q", n, o.ID)
			return
		}
		if o.Text == "" {
			p.addf("question %d: option %d: text is required", n, i+1)
			return
		}
		seen[o.ID] = true
		opts = append(opts, o)
	}

	correct := map[string]bool{}
	for _, o := range opts {
		if o.Correct {
			correct[o.ID] = true
		}
	}
	ids := append([]string(nil), rq.CorrectOptionIDs...)
	if rq.CorrectOptionID != "" {
		ids = append(ids, rq.CorrectOptionID)
	}
	for _, id := range ids {
		if !seen[id] {
			p.addf("question %d: correct option id %q does not match any option", n, id)
			return
		}
		correct[id] = true
	}
	if len(correct) == 0 && rq.CorrectIndex != nil {
		ix := *rq.CorrectIndex
		if ix < 0 || ix >= len(opts) {
			p.addf("question %d: correct_index %d is out of range", n, ix)
			return
		}
		correct[opts[ix].ID] = true
	}

	if len(correct) != 1 {
		p.addf("question %d: MCQ must have exactly 1 correct option, got %d", n, len(correct))
		return
	}

	for i := range opts {
		opts[i].Correct = correct[opts[i].ID]
		if opts[i].Correct {
			ix := i
			q.CorrectIndex = &ix
			q.CorrectOptionIDs = []string{opts[i].ID}
		}
	}
	q.Options = opts
}

func decodeOption(b json.RawMessage) (domain.Option, error) {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return domain.Option{Text: strings.TrimSpace(s)}, nil
	}

	var ro rawOption
	if err := json.Unmarshal(b, &ro); err != nil {
		return domain.Option{}, fmt.Errorf("must be a string or an object with id and text")
	}

	return domain.Option{
		ID:      strings.TrimSpace(ro.ID),
		Text:    strings.TrimSpace(ro.Text),
		Correct: ro.Correct || ro.IsCorrect,
	}, nil
}

func parseTF(n int, rq rawQuestion, q *domain.Question, p *problems) {
	var b bool
	if len(rq.Answer) == 0 || json.Unmarshal(rq.Answer, &b) != nil {
		p.addf("question %d: TF answer must be a boolean", n)
		return
	}
	q.Answer = &b
}

func parseFIB(n int, rq rawQuestion, q *domain.Question, p *problems) {
	if bad := checkVar(fmt.Sprintf("question %d: FIB blanks", n), rq.Blanks, "min=1"); len(bad) > 0 {
		p.add(bad...)
		return
	}

	blanks := make([]domain.Blank, 0, len(rq.Blanks))
	for i, b := range rq.Blanks {
		accepted, err := decodeBlank(b)
		if err != nil {
			p.addf("question %d: blank %d: %v", n, i+1, err)
			return
		}
		if bad := checkVar(fmt.Sprintf("question %d: blanks[%d] accepted answers", n, i), accepted, "min=1"); len(bad) > 0 {
			p.add(bad...)
			return
		}
		blanks = append(blanks, domain.Blank{Accepted: accepted})
	}

	if got := len(blankPlaceholder.FindAllStringIndex(q.Stem, -1)); got != len(blanks) {
		p.addf("question %d: stem has %d blank placeholders but %d blanks are defined", n, got, len(blanks))
		return
	}
	q.Blanks = blanks
}

func decodeBlank(b json.RawMessage) ([]string, error) {
	var (
		s    string
		list []string
		obj  struct {
			Accepted []string `json:"accepted"`
			Answers  []string `json:"answers"`
			Answer   string   `json:"answer"`
		}
	)

	switch {
	case json.Unmarshal(b, &s) == nil:
		list = []string{s}
	case json.Unmarshal(b, &list) == nil:
	case json.Unmarshal(b, &obj) == nil:
		list = append(append(list, obj.Accepted...), obj.Answers...)
		if obj.Answer != "" {
			list = append(list, obj.Answer)
		}
	default:
		return nil, fmt.Errorf("must be a string, a list of strings or an object with accepted answers")
	}

	out := make([]string, 0, len(list))
	for _, a := range list {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

func parseSA(n int, rq rawQuestion, q *domain.Question, p *problems) {
	if rq.Rubric == nil {
		p.addf("question %d: SA rubric is required", n)
		return
	}
	if bad := checkStruct(fmt.Sprintf("question %d: SA rubric.", n), rq.Rubric); len(bad) > 0 {
		p.add(bad...)
		return
	}

	kps := make([]domain.KeyPoint, 0, len(rq.Rubric.KeyPoints))
	for i, rk := range rq.Rubric.KeyPoints {
		kp := domain.KeyPoint{
			Text:         strings.TrimSpace(rk.Text),
			Weight:       1,
			Alternatives: append(append([]string(nil), rk.Alternatives...), rk.Keywords...),
			Patterns:     rk.Patterns,
		}
		if rk.Weight != nil {
			kp.Weight = *rk.Weight
		}
		if kp.Text == "" && len(kp.Alternatives) == 0 && len(kp.Patterns) == 0 {
			p.addf("question %d: key point %d: text, alternatives or patterns are required", n, i+1)
			return
		}
		for _, pat := range kp.Patterns {
			if _, err := regexp.Compile("(?i)" + pat); err != nil {
				p.addf("question %d: key point %d: invalid pattern %q", n, i+1, pat)
				return
			}
		}
		kps = append(kps, kp)
	}

	q.Rubric = &domain.Rubric{
		KeyPoints: kps,
		Threshold: rq.Rubric.Threshold,
		MinWords:  rq.Rubric.MinWords,
	}
}
