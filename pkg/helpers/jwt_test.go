package helpers

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestJWTRoundTripCarriesSession(t *testing.T) {
	m := NewJWTManager("access", "refresh", time.Minute, time.Hour)

	tok, exp, err := m.GenerateAccessToken("u1", "s1")
	assert.Equal(t, err, nil)
	assert.Equal(t, exp.After(time.Now()), true)

	claims, err := m.ParseAccessToken(tok)
	assert.Equal(t, err, nil)
	assert.Equal(t, claims.UserID, "u1")
	assert.Equal(t, claims.SessionID, "s1")

	// access and refresh secrets are not interchangeable
	_, err = m.ParseRefreshToken(tok)
	assert.NotEqual(t, err, nil)
}

func TestJWTExpired(t *testing.T) {
	m := NewJWTManager("access", "refresh", -time.Minute, time.Hour)
	tok, _, err := m.GenerateAccessToken("u1", "s1")
	assert.Equal(t, err, nil)
	_, err = m.ParseAccessToken(tok)
	assert.NotEqual(t, err, nil)
}
