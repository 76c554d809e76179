package search

import (
	"context"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
)

func TestUserDocumentOmitsPassword(t *testing.T) {
	u := &entity.User{ID: "u1", Username: "ann", Password: "hash", Emails: []entity.Email{{Address: "ann@example.com"}}}
	doc := userDocument(u)
	assert.Equal(t, doc["email"], "ann@example.com")
	assert.Equal(t, doc["username"], "ann")
	_, ok := doc["password"]
	assert.Equal(t, ok, false)
}

func TestSearchQueryClampsSize(t *testing.T) {
	assert.Equal(t, searchQuery("a", 0)["size"], 10)
	assert.Equal(t, searchQuery("a", 500)["size"], 10)
	assert.Equal(t, searchQuery("a", 25)["size"], 25)
}

func TestDisabledIndexIsNoop(t *testing.T) {
	x := NewUserIndex(nil, "users")
	assert.Equal(t, x.IndexUser(context.Background(), &entity.User{ID: "u1"}), nil)
	hits, err := x.SearchUsers(context.Background(), "ann", 5)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(hits), 0)
}
