package domain

import (
	"encoding/json"
	"fmt"
)

// PrivatePayload holds the correct answer or rubric of a session question. It is a closed set:
// MCQKey, TFKey, FIBKey and SARubric are the only implementations.
type PrivatePayload interface {
	Type() QuestionType
	privatePayload()
}

type MCQKey struct {
	CorrectIDs []string          `json:"correct_ids"`
	OptionText map[string]string `json:"option_text"`
}

type TFKey struct {
	Answer bool `json:"answer"`
}

type FIBKey struct {
	Accepted [][]string `json:"accepted"`
}

type SARubric struct {
	KeyPoints []KeyPoint `json:"key_points"`
	Threshold float64    `json:"threshold"`
	MinWords  int        `json:"min_words"`
}

func (MCQKey) Type() QuestionType   { return QuestionTypeMCQ }
func (TFKey) Type() QuestionType    { return QuestionTypeTF }
func (FIBKey) Type() QuestionType   { return QuestionTypeFIB }
func (SARubric) Type() QuestionType { return QuestionTypeSA }

func (MCQKey) privatePayload()   {}
func (TFKey) privatePayload()    {}
func (FIBKey) privatePayload()   {}
func (SARubric) privatePayload() {}

type payloadEnvelope struct {
	Type QuestionType    `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalPrivatePayload encodes a payload with its type discriminator for storage.
func MarshalPrivatePayload(p PrivatePayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("marshal private payload: nil payload")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal private payload: %w", err)
	}

	return json.Marshal(payloadEnvelope{Type: p.Type(), Data: data})
}

// UnmarshalPrivatePayload decodes a payload written by MarshalPrivatePayload.
func UnmarshalPrivatePayload(b []byte) (PrivatePayload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal private payload: %w", err)
	}

	var (
		p   PrivatePayload
		err error
	)
	switch env.Type {
	case QuestionTypeMCQ:
		var k MCQKey
		err = json.Unmarshal(env.Data, &k)
		p = k
	case QuestionTypeTF:
		var k TFKey
		err = json.Unmarshal(env.Data, &k)
		p = k
	case QuestionTypeFIB:
		var k FIBKey
		err = json.Unmarshal(env.Data, &k)
		p = k
	case QuestionTypeSA:
		var k SARubric
		err = json.Unmarshal(env.Data, &k)
		p = k
	default:
		return nil, fmt.Errorf("unmarshal private payload: unknown type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal private payload %s: %w", env.Type, err)
	}

	return p, nil
}
