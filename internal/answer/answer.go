// Package answer coerces submitted answers of any shape into one canonical form per question
// type.
package answer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/victornm/quizforge/internal/domain"
)

// Normalized is a canonical submitted answer. The set of implementations is closed.
type Normalized interface {
	isNormalized()
}

type SingleChoice struct {
	OptionID string `json:"selected_option_id"`
}

type MultiChoice struct {
	OptionIDs []string `json:"selected_option_ids"`
}

type Boolean struct {
	Value bool `json:"answer_bool"`
}

type Blanks struct {
	Values []string `json:"blanks"`
}

type Text struct {
	Value string `json:"text"`
}

// Empty is an absent or uninterpretable answer.
type Empty struct{}

func (SingleChoice) isNormalized() {}
func (MultiChoice) isNormalized()  {}
func (Boolean) isNormalized()      {}
func (Blanks) isNormalized()       {}
func (Text) isNormalized()         {}
func (Empty) isNormalized()        {}

// MalformedError reports a submitted answer that could not be interpreted for its question type.
type MalformedError struct {
	Type   domain.QuestionType
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s answer: %s", e.Type, e.Reason)
}

var (
	choiceKeys  = []string{"selected_option_id", "option_id", "answer", "choice", "value"}
	boolKeys    = []string{"answer_bool", "answer", "value", "selected_option_id"}
	blanksKeys  = []string{"blanks", "answers", "values"}
	textKeys    = []string{"text", "answer", "value"}
	multiKeys   = []string{"selected_option_ids", "option_ids", "choices"}
	trueValues  = map[string]bool{"true": true, "t": true, "yes": true, "y": true, "1": true}
	falseValues = map[string]bool{"false": true, "f": true, "no": true, "n": true, "0": true}
)

// Normalize coerces raw, typically decoded from JSON, into the canonical answer for qType. A nil
// raw is an unanswered question and yields Empty without error. Anything else that cannot be
// interpreted yields Empty and a *MalformedError.
func Normalize(qType domain.QuestionType, raw any) (Normalized, error) {
	if raw == nil {
		return Empty{}, nil
	}

	var (
		n  Normalized
		ok bool
	)
	switch qType {
	case domain.QuestionTypeMCQ:
		n, ok = choice(raw)
	case domain.QuestionTypeTF:
		n, ok = boolean(raw)
	case domain.QuestionTypeFIB:
		n, ok = blanks(raw)
	case domain.QuestionTypeSA:
		n, ok = text(raw)
	default:
		return Empty{}, &MalformedError{Type: qType, Reason: "unknown question type"}
	}

	if !ok {
		return Empty{}, &MalformedError{Type: qType, Reason: fmt.Sprintf("unsupported shape %T", raw)}
	}

	return n, nil
}

func choice(raw any) (Normalized, bool) {
	switch v := raw.(type) {
	case string:
		if v = strings.TrimSpace(v); v == "" {
			return Empty{}, true
		}
		return SingleChoice{OptionID: v}, true
	case []any:
		ids := make([]string, 0, len(v))
		seen := make(map[string]bool, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			if s = strings.TrimSpace(s); s != "" && !seen[s] {
				seen[s] = true
				ids = append(ids, s)
			}
		}
		return choiceFromIDs(ids), true
	case []string:
		return choice(toAnySlice(v))
	case map[string]any:
		multi, hasMulti := lookup(v, multiKeys)
		if hasMulti {
			n, ok := choice(multi)
			if _, empty := n.(Empty); !ok || !empty {
				return n, ok
			}
		}
		// An empty multi-selection defers to a single selection sent alongside it.
		if val, ok := lookup(v, choiceKeys); ok {
			return choice(val)
		}
		if hasMulti {
			return Empty{}, true
		}
	}

	return nil, false
}

func choiceFromIDs(ids []string) Normalized {
	switch len(ids) {
	case 0:
		return Empty{}
	case 1:
		return SingleChoice{OptionID: ids[0]}
	}

	sort.Strings(ids)
	return MultiChoice{OptionIDs: ids}
}

func boolean(raw any) (Normalized, bool) {
	switch v := raw.(type) {
	case bool:
		return Boolean{Value: v}, true
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		switch {
		case trueValues[s]:
			return Boolean{Value: true}, true
		case falseValues[s]:
			return Boolean{Value: false}, true
		}
	case float64:
		switch v {
		case 1:
			return Boolean{Value: true}, true
		case 0:
			return Boolean{Value: false}, true
		}
	case int:
		return boolean(float64(v))
	case map[string]any:
		if val, ok := lookup(v, boolKeys); ok {
			return boolean(val)
		}
	}

	return nil, false
}

func blanks(raw any) (Normalized, bool) {
	switch v := raw.(type) {
	case string:
		return Blanks{Values: []string{v}}, true
	case []string:
		return Blanks{Values: append([]string(nil), v...)}, true
	case []any:
		values := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := scalarString(e)
			if !ok {
				return nil, false
			}
			values = append(values, s)
		}
		return Blanks{Values: values}, true
	case map[string]any:
		if val, ok := lookup(v, blanksKeys); ok {
			return blanks(val)
		}
		return indexedBlanks(v)
	}

	return nil, false
}

// indexedBlanks reads {"0": "paris", "1": "seine"}. Missing indexes become empty answers.
func indexedBlanks(m map[string]any) (Normalized, bool) {
	if len(m) == 0 {
		return nil, false
	}

	byIndex := make(map[int]string, len(m))
	last := -1
	for k, e := range m {
		i, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || i < 0 || i >= 64 {
			return nil, false
		}
		s, ok := scalarString(e)
		if !ok {
			return nil, false
		}
		byIndex[i] = s
		last = max(last, i)
	}

	values := make([]string, last+1)
	for i, s := range byIndex {
		values[i] = s
	}

	return Blanks{Values: values}, true
}

func text(raw any) (Normalized, bool) {
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return Empty{}, true
		}
		return Text{Value: v}, true
	case []any:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			parts = append(parts, s)
		}
		return text(strings.Join(parts, " "))
	case map[string]any:
		if val, ok := lookup(v, textKeys); ok {
			return text(val)
		}
	}

	return nil, false
}

func lookup(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", true
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
