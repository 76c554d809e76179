package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

func TestPostListOrdersNewestFirstAndLimits(t *testing.T) {
	ctx := context.Background()
	posts := NewStore().Posts()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, text := range []string{"one", "two", "three"} {
		err := posts.Create(ctx, &entity.Post{ID: text, Text: text, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		assert.Equal(t, err, nil)
	}

	got, err := posts.List(ctx, repository.PostFilter{Limit: 2})
	assert.Equal(t, err, nil)
	assert.Equal(t, len(got), 2)
	assert.Equal(t, got[0].ID, "three")
	assert.Equal(t, got[1].ID, "two")
}

func TestPostLikesAreConditional(t *testing.T) {
	ctx := context.Background()
	posts := NewStore().Posts()
	p := &entity.Post{Text: "hi"}
	assert.Equal(t, posts.Create(ctx, p), nil)

	after, applied, err := posts.AddLike(ctx, p.ID, "u1")
	assert.Equal(t, err, nil)
	assert.Equal(t, applied, true)
	assert.Equal(t, after.LikeCount, 1)

	_, applied, _ = posts.AddLike(ctx, p.ID, "u1")
	assert.Equal(t, applied, false)

	after, applied, _ = posts.RemoveLike(ctx, p.ID, "u1")
	assert.Equal(t, applied, true)
	assert.Equal(t, after.LikeCount, 0)
	assert.Equal(t, len(after.Likes), 0)

	_, _, err = posts.AddLike(ctx, "missing", "u1")
	assert.Equal(t, err, repository.ErrNotFound)
}

func TestConcurrentLikesKeepCountInSync(t *testing.T) {
	ctx := context.Background()
	posts := NewStore().Posts()
	p := &entity.Post{Text: "hot"}
	assert.Equal(t, posts.Create(ctx, p), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = posts.AddLike(ctx, p.ID, "same-user")
		}()
	}
	wg.Wait()

	got, err := posts.GetByID(ctx, p.ID)
	assert.Equal(t, err, nil)
	assert.Equal(t, got.LikeCount, 1)
	assert.Equal(t, len(got.Likes), 1)
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	posts := NewStore().Posts()
	p := &entity.Post{Text: "x", Tags: []string{"a"}}
	assert.Equal(t, posts.Create(ctx, p), nil)

	got, _ := posts.GetByID(ctx, p.ID)
	got.Tags[0] = "mutated"
	again, _ := posts.GetByID(ctx, p.ID)
	assert.Equal(t, again.Tags[0], "a")
}

func TestTagDecrementDeletesAtZero(t *testing.T) {
	ctx := context.Background()
	tags := NewStore().Tags()
	_, _ = tags.Increment(ctx, "go")
	tag, err := tags.Increment(ctx, "go")
	assert.Equal(t, err, nil)
	assert.Equal(t, tag.Count, 2)

	_, deleted, _ := tags.Decrement(ctx, "go")
	assert.Equal(t, deleted, false)
	_, deleted, _ = tags.Decrement(ctx, "go")
	assert.Equal(t, deleted, true)

	_, err = tags.Get(ctx, "go")
	assert.Equal(t, err, repository.ErrNotFound)
	_, _, err = tags.Decrement(ctx, "go")
	assert.Equal(t, err, repository.ErrNotFound)
}

func TestTagListOrdersByCount(t *testing.T) {
	ctx := context.Background()
	tags := NewStore().Tags()
	for _, n := range []string{"b", "a", "a", "c", "c", "c"} {
		_, _ = tags.Increment(ctx, n)
	}
	got, err := tags.List(ctx, 2)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(got), 2)
	assert.Equal(t, got[0].Name, "c")
	assert.Equal(t, got[1].Name, "a")
}

func TestTransactionIDIsUnique(t *testing.T) {
	ctx := context.Background()
	txs := NewStore().Transactions()
	assert.Equal(t, txs.Create(ctx, &entity.Transaction{UserID: "u", TransactionID: "MP1"}), nil)
	assert.Equal(t, txs.Create(ctx, &entity.Transaction{UserID: "u", TransactionID: "MP1"}), repository.ErrDuplicate)

	got, _ := txs.ListByUser(ctx, "u")
	assert.Equal(t, len(got), 1)
}

func TestUserProfilePatchLeavesUnsetKeys(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()
	u := &entity.User{Emails: []entity.Email{{Address: "a@b.c"}}, Profile: entity.Profile{Name: "A", Avatar: "pic"}}
	assert.Equal(t, users.Create(ctx, u), nil)

	name, bio := "B", "hello"
	got, err := users.UpdateProfile(ctx, u.ID, repository.ProfilePatch{Name: &name, Bio: &bio})
	assert.Equal(t, err, nil)
	assert.Equal(t, got.Profile.Name, "B")
	assert.Equal(t, got.Profile.Bio, "hello")
	assert.Equal(t, got.Profile.Avatar, "pic")

	byEmail, err := users.GetByEmail(ctx, "A@B.C")
	assert.Equal(t, err, nil)
	assert.Equal(t, byEmail.ID, u.ID)

	err = users.Create(ctx, &entity.User{Emails: []entity.Email{{Address: "a@b.c"}}})
	assert.Equal(t, err, repository.ErrDuplicate)
}

func TestMessagesForUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	msgs := NewStore().Messages()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = msgs.Create(ctx, &entity.Message{ID: "m1", SenderID: "a", ReceiverID: "b", CreatedAt: base})
	_ = msgs.Create(ctx, &entity.Message{ID: "m2", SenderID: "b", ReceiverID: "a", CreatedAt: base.Add(time.Second)})
	_ = msgs.Create(ctx, &entity.Message{ID: "m3", SenderID: "c", ReceiverID: "d", CreatedAt: base})

	got, err := msgs.ListForUser(ctx, "a", 0)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(got), 2)
	assert.Equal(t, got[0].ID, "m2")
	assert.Equal(t, got[1].ID, "m1")
}
