package helpers

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestPublicURLEscapesSegments(t *testing.T) {
	assert.Equal(t, PublicURL("media", "avatars/u1/a b.png"), "https://storage.googleapis.com/media/avatars/u1/a%20b.png")
}
