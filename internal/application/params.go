package application

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/oksasatya/go-social-sync/pkg/validation"
)

const matchFailed = "Match failed"

// Args are the positional JSON arguments of a procedure call or subscription.
type Args []json.RawMessage

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// Arg decodes argument i into T. Absent and null arguments are errors unless optional,
// in which case the zero value is returned.
func Arg[T any](args Args, i int, name string, optional bool) (T, error) {
	var v T
	if i >= len(args) || isNull(args[i]) {
		if optional {
			return v, nil
		}
		return v, Invalid(matchFailed, map[string]string{name: "is required"})
	}
	if err := json.Unmarshal(args[i], &v); err != nil {
		return v, Invalid(matchFailed, map[string]string{name: "must be " + typeName[T]()})
	}
	return v, nil
}

// Struct decodes argument i into T and runs its validate rules.
func Struct[T any](args Args, i int, name string) (T, error) {
	v, err := Arg[T](args, i, name, false)
	if err != nil {
		return v, err
	}
	if err := validation.Struct(v); err != nil {
		return v, Invalid(matchFailed, validation.ToDetails(err))
	}
	return v, nil
}

// NonEmpty rejects an empty string argument.
func NonEmpty(v, name string) error {
	if v == "" {
		return Invalid(matchFailed, map[string]string{name: "must not be empty"})
	}
	return nil
}

func typeName[T any]() string {
	var v T
	switch any(v).(type) {
	case string:
		return "a string"
	case int, int64, float64, decimal.Decimal:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return "an object"
	}
}
