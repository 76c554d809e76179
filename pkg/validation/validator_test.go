package validation

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pwd"`
	Plan     string `json:"plan" validate:"omitempty,oneof=basic premium"`
}

func TestToDetailsUsesJSONNames(t *testing.T) {
	err := Struct(signup{Email: "nope", Password: "short", Plan: "gold"})
	d := ToDetails(err)
	assert.Equal(t, d["email"], "must be a valid email")
	assert.Equal(t, d["password"], "must be at least 8 characters")
	assert.Equal(t, d["plan"], "must be one of: basic, premium")
}

func TestToDetailsRequired(t *testing.T) {
	d := ToDetails(Struct(signup{}))
	assert.Equal(t, d["email"], "is required")
}

func TestToDetailsInvalidJSON(t *testing.T) {
	var v signup
	err := json.Unmarshal([]byte("{"), &v)
	assert.Equal(t, ToDetails(err)["payload"], "invalid json")
}

func TestValidStruct(t *testing.T) {
	assert.Equal(t, Struct(signup{Email: "a@example.com", Password: "password123"}), nil)
	assert.Equal(t, ToDetails(nil) == nil, true)
}
