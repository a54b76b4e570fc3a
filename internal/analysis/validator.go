package analysis

import (
	"fmt"
	"reflect"
	"strings"
)

// Reason describes why an input failed validation.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNullInput
	ReasonWrongType
	ReasonEmptyAfterTrim
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNullInput:
		return "null_input"
	case ReasonWrongType:
		return "wrong_type"
	case ReasonEmptyAfterTrim:
		return "empty_after_trim"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Kind maps a validation reason to the reported error kind.
func (r Reason) Kind() ErrorKind {
	switch r {
	case ReasonNullInput:
		return ErrorNullInput
	case ReasonWrongType:
		return ErrorWrongType
	case ReasonEmptyAfterTrim:
		return ErrorEmptyAfterTrim
	default:
		return ""
	}
}

// Outcome is the result of Validate. Text holds the original, untrimmed message
// when the outcome is valid.
type Outcome struct {
	Text   string
	Reason Reason
	Type   string // dynamic type of a wrong-typed input
}

// Valid reports whether the input passed validation.
func (o Outcome) Valid() bool {
	return o.Reason == ReasonNone
}

// Validate checks that input is non-null text with at least one non-whitespace character.
func Validate(input any) Outcome {
	switch v := input.(type) {
	case nil:
		return Outcome{Reason: ReasonNullInput}
	case string:
		return validateText(v)
	case *string:
		if v == nil {
			return Outcome{Reason: ReasonNullInput}
		}
		return validateText(*v)
	}

	if isNilValue(input) {
		return Outcome{Reason: ReasonNullInput}
	}
	return Outcome{Reason: ReasonWrongType, Type: fmt.Sprintf("%T", input)}
}

func validateText(text string) Outcome {
	if strings.TrimSpace(text) == "" {
		return Outcome{Reason: ReasonEmptyAfterTrim}
	}
	return Outcome{Text: text}
}

// isNilValue catches typed nils (nil maps, slices, pointers) hidden in an interface.
func isNilValue(input any) bool {
	rv := reflect.ValueOf(input)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
