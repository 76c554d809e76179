package repository

import (
	"strings"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
)

// SearchTag turns a search term into the tag it matches exactly.
func SearchTag(term string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(term)), "#")
}

// Matches reports whether p belongs to the filter's result set. Store implementations
// must select exactly the posts Matches accepts.
func (f PostFilter) Matches(p *entity.Post) bool {
	if p == nil {
		return false
	}
	if f.OwnerID != "" && p.OwnerID != f.OwnerID {
		return false
	}
	if f.Tag != "" && !p.HasTag(f.Tag) {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Text), term) &&
			!strings.Contains(strings.ToLower(p.Username), term) &&
			!p.HasTag(SearchTag(f.Search)) {
			return false
		}
	}
	return true
}

// PostNewerFirst orders posts by createdAt descending, then id descending.
func PostNewerFirst(a, b *entity.Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// MessageNewerFirst orders messages by createdAt descending, then id descending.
func MessageNewerFirst(a, b *entity.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// TagMostUsedFirst orders tags by count descending, then name ascending.
func TagMostUsedFirst(a, b *entity.Tag) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.Name < b.Name
}

// TransactionNewerFirst orders transactions by createdAt descending, then id descending.
func TransactionNewerFirst(a, b *entity.Transaction) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
