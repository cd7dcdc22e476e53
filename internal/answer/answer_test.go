package answer_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizforge/internal/answer"
	"github.com/victornm/quizforge/internal/domain"
)

// decode mirrors how submitted answers reach the normalizer: decoded from JSON into any.
func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestNormalize(t *testing.T) {
	tests := map[string]struct {
		qType     domain.QuestionType
		raw       string
		want      answer.Normalized
		malformed bool
	}{
		"mcq plain string":           {qType: domain.QuestionTypeMCQ, raw: `" opt_2 "`, want: answer.SingleChoice{OptionID: "opt_2"}},
		"mcq selected_option_id":     {qType: domain.QuestionTypeMCQ, raw: `{"selected_option_id":"opt_2"}`, want: answer.SingleChoice{OptionID: "opt_2"}},
		"mcq choice key":             {qType: domain.QuestionTypeMCQ, raw: `{"choice":"opt_3"}`, want: answer.SingleChoice{OptionID: "opt_3"}},
		"mcq single element list":    {qType: domain.QuestionTypeMCQ, raw: `["opt_1"]`, want: answer.SingleChoice{OptionID: "opt_1"}},
		"mcq list sorted and unique": {qType: domain.QuestionTypeMCQ, raw: `["b","a","b"]`, want: answer.MultiChoice{OptionIDs: []string{"a", "b"}}},
		"mcq selected_option_ids":    {qType: domain.QuestionTypeMCQ, raw: `{"selected_option_ids":["x","y"]}`, want: answer.MultiChoice{OptionIDs: []string{"x", "y"}}},
		"mcq empty list":             {qType: domain.QuestionTypeMCQ, raw: `[]`, want: answer.Empty{}},
		"mcq empty ids with one id":  {qType: domain.QuestionTypeMCQ, raw: `{"selected_option_id":"opt_2","selected_option_ids":[]}`, want: answer.SingleChoice{OptionID: "opt_2"}},
		"mcq empty ids only":         {qType: domain.QuestionTypeMCQ, raw: `{"selected_option_ids":[]}`, want: answer.Empty{}},
		"mcq number is malformed":    {qType: domain.QuestionTypeMCQ, raw: `2`, want: answer.Empty{}, malformed: true},
		"mcq unknown keys":           {qType: domain.QuestionTypeMCQ, raw: `{"pick":"opt_1"}`, want: answer.Empty{}, malformed: true},

		"tf bool":             {qType: domain.QuestionTypeTF, raw: `false`, want: answer.Boolean{Value: false}},
		"tf string yes":       {qType: domain.QuestionTypeTF, raw: `"Yes"`, want: answer.Boolean{Value: true}},
		"tf string f":         {qType: domain.QuestionTypeTF, raw: `"f"`, want: answer.Boolean{Value: false}},
		"tf number":           {qType: domain.QuestionTypeTF, raw: `1`, want: answer.Boolean{Value: true}},
		"tf answer_bool":      {qType: domain.QuestionTypeTF, raw: `{"answer_bool":true}`, want: answer.Boolean{Value: true}},
		"tf option id":        {qType: domain.QuestionTypeTF, raw: `{"selected_option_id":"false"}`, want: answer.Boolean{Value: false}},
		"tf maybe":            {qType: domain.QuestionTypeTF, raw: `"maybe"`, want: answer.Empty{}, malformed: true},
		"tf number out range": {qType: domain.QuestionTypeTF, raw: `2`, want: answer.Empty{}, malformed: true},

		"fib list":          {qType: domain.QuestionTypeFIB, raw: `["Paris", "seine"]`, want: answer.Blanks{Values: []string{"Paris", "seine"}}},
		"fib numbers":       {qType: domain.QuestionTypeFIB, raw: `[1955, null]`, want: answer.Blanks{Values: []string{"1955", ""}}},
		"fib single string": {qType: domain.QuestionTypeFIB, raw: `"Paris"`, want: answer.Blanks{Values: []string{"Paris"}}},
		"fib blanks key":    {qType: domain.QuestionTypeFIB, raw: `{"blanks":["a","b"]}`, want: answer.Blanks{Values: []string{"a", "b"}}},
		"fib indexed map":   {qType: domain.QuestionTypeFIB, raw: `{"answers":{"1":"seine","0":"paris"}}`, want: answer.Blanks{Values: []string{"paris", "seine"}}},
		"fib sparse map":    {qType: domain.QuestionTypeFIB, raw: `{"0":"paris","2":"x"}`, want: answer.Blanks{Values: []string{"paris", "", "x"}}},
		"fib nested list":   {qType: domain.QuestionTypeFIB, raw: `[["paris"]]`, want: answer.Empty{}, malformed: true},
		"fib bad map key":   {qType: domain.QuestionTypeFIB, raw: `{"first":"paris"}`, want: answer.Empty{}, malformed: true},

		"sa string":       {qType: domain.QuestionTypeSA, raw: `"light becomes sugar"`, want: answer.Text{Value: "light becomes sugar"}},
		"sa text key":     {qType: domain.QuestionTypeSA, raw: `{"text":"glucose"}`, want: answer.Text{Value: "glucose"}},
		"sa list joined":  {qType: domain.QuestionTypeSA, raw: `["light", "energy"]`, want: answer.Text{Value: "light energy"}},
		"sa blank string": {qType: domain.QuestionTypeSA, raw: `"  "`, want: answer.Empty{}},
		"sa number":       {qType: domain.QuestionTypeSA, raw: `42`, want: answer.Empty{}, malformed: true},

		"null is unanswered": {qType: domain.QuestionTypeSA, raw: `null`, want: answer.Empty{}},
		"unknown type":       {qType: "ESSAY", raw: `"x"`, want: answer.Empty{}, malformed: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := answer.Normalize(tt.qType, decode(t, tt.raw))
			assert.Equal(t, tt.want, got)

			if tt.malformed {
				var me *answer.MalformedError
				require.ErrorAs(t, err, &me)
				assert.Equal(t, tt.qType, me.Type)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNormalize_JSONShape(t *testing.T) {
	n, err := answer.Normalize(domain.QuestionTypeMCQ, "opt_2")
	require.NoError(t, err)

	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"selected_option_id":"opt_2"}`, string(b))
}
