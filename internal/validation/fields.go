package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var fields = newFieldValidator()

func newFieldValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(JSONName)
	return v
}

// JSONName reports struct fields under their JSON key, so problems read like the document that
// produced them.
func JSONName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// CheckStruct runs the `validate` tags of s and returns one problem per failing field.
func CheckStruct(s any) []string {
	return checkStruct("", s)
}

func checkStruct(prefix string, s any) []string {
	return Problems(prefix, fields.Struct(s))
}

// checkVar runs a single rule against a value that is not addressed by a struct tag, such as a
// shape that only applies to one question type.
func checkVar(label string, value any, tag string) []string {
	err := fields.Var(value, tag)

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		out = append(out, label+" "+Rule(fe))
	}
	return out
}

// Problems flattens the result of a validator run into problem lines prefixed with prefix.
func Problems(prefix string, err error) []string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		if err != nil {
			return []string{prefix + err.Error()}
		}
		return nil
	}

	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		out = append(out, prefix+FieldPath(fe)+" "+Rule(fe))
	}
	return out
}

// FieldPath is the namespace of a field error without its root struct.
func FieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// Rule describes the constraint a field failed.
func Rule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_without", "required_without_all":
		return "is required"
	case "min", "max", "len":
		return "must " + sizeRule(fe)
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return fmt.Sprintf("fails the %s rule", fe.Tag())
}

func sizeRule(fe validator.FieldError) string {
	bound := map[string]string{"min": "at least", "max": "at most", "len": "exactly"}[fe.Tag()]

	switch fe.Kind() {
	case reflect.String:
		return fmt.Sprintf("be %s %s characters", bound, fe.Param())
	case reflect.Slice, reflect.Array, reflect.Map:
		unit := "items"
		if fe.Param() == "1" {
			unit = "item"
		}
		return fmt.Sprintf("have %s %s %s, got %d", bound, fe.Param(), unit, reflect.ValueOf(fe.Value()).Len())
	default:
		return fmt.Sprintf("be %s %s", bound, fe.Param())
	}
}
