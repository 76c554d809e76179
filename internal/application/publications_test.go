package application_test

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/oksasatya/go-social-sync/internal/application"
)

func TestPostsFeedDeliversDeltasBeforeMethodReturns(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	bob := h.user(t, "bob", "", "bob@example.com")
	sub, rec := h.subscribe(t, "", "posts")
	assert.Equal(t, len(sub.Records()), 0)

	id := h.mustCall(t, alice, "posts.insert", "hello #go").(string)
	events := rec.take()
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].kind, "added")
	assert.Equal(t, events[0].collection, "posts")
	assert.Equal(t, events[0].id, id)
	assert.Equal(t, events[0].fields["text"], "hello #go")
	assert.Equal(t, events[0].fields["ownerId"], alice)
	assert.Equal(t, events[0].fields["likeCount"], 0)
	assert.Equal(t, events[0].fields["tags"], []string{"go"})
	_, hasImage := events[0].fields["imageUri"]
	assert.Equal(t, hasImage, false)

	h.mustCall(t, bob, "posts.like", id)
	events = rec.take()
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].kind, "changed")
	assert.Equal(t, events[0].fields["likeCount"], 1)
	assert.Equal(t, events[0].fields["likes"], []string{bob})
	_, hasText := events[0].fields["text"]
	assert.Equal(t, hasText, false)

	h.mustCall(t, alice, "posts.remove", id)
	events = rec.take()
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].kind, "removed")
	assert.Equal(t, events[0].id, id)
}

func TestPostsFeedIsNewestFirst(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	first := h.mustCall(t, alice, "posts.insert", "one").(string)
	second := h.mustCall(t, alice, "posts.insert", "two").(string)

	sub, _ := h.subscribe(t, "", "posts")
	recs := sub.Records()
	assert.Equal(t, len(recs), 2)
	assert.Equal(t, recs[0].ID, second)
	assert.Equal(t, recs[1].ID, first)
}

func TestSeededPostsPublishNullOwner(t *testing.T) {
	h := newHarness(t)
	seeder := &application.Seeder{Users: h.repos.Users, Posts: h.repos.Posts}
	assert.Equal(t, seeder.Seed(h.ctx, "", ""), nil)

	sub, _ := h.subscribe(t, "", "posts")
	recs := sub.Records()
	assert.Equal(t, len(recs), 3)
	for _, r := range recs {
		assert.Equal(t, r.Fields["ownerId"], nil)
		assert.Equal(t, r.Fields["username"], application.SeedAuthor)
	}
}

func TestSearchPostsEmptyTermIsTerminal(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	h.mustCall(t, alice, "posts.insert", "anything")

	sub, rec := h.subscribe(t, "", "searchPosts", "")
	assert.Equal(t, len(sub.Records()), 0)
	assert.Equal(t, sub.Collection(), "")

	h.mustCall(t, alice, "posts.insert", "more")
	assert.Equal(t, len(rec.take()), 0)
}

func TestSearchPostsMatchesTextAuthorAndTag(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	bob := h.user(t, "bob", "", "bob@example.com")
	byText := h.mustCall(t, alice, "posts.insert", "Gophers everywhere").(string)
	byTag := h.mustCall(t, bob, "posts.insert", "see #gopher").(string)
	h.mustCall(t, bob, "posts.insert", "unrelated")

	sub, rec := h.subscribe(t, "", "searchPosts", "gopher")
	got := map[string]bool{}
	for _, r := range sub.Records() {
		got[r.ID] = true
	}
	assert.Equal(t, got, map[string]bool{byText: true, byTag: true})

	byName := h.mustCall(t, bob, "posts.insert", "nothing to see").(string)
	assert.Equal(t, len(rec.take()), 0)

	sub, _ = h.subscribe(t, "", "searchPosts", "BOB")
	found := false
	for _, r := range sub.Records() {
		if r.ID == byName {
			found = true
		}
	}
	assert.Equal(t, found, true)
}

func TestUserPostsAndPostsByTag(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	bob := h.user(t, "bob", "", "bob@example.com")
	mine := h.mustCall(t, alice, "posts.insert", "#news today").(string)
	h.mustCall(t, bob, "posts.insert", "#sports today")

	sub, rec := h.subscribe(t, "", "userPosts", alice)
	recs := sub.Records()
	assert.Equal(t, len(recs), 1)
	assert.Equal(t, recs[0].ID, mine)

	h.mustCall(t, bob, "posts.insert", "#news again")
	assert.Equal(t, len(rec.take()), 0)

	sub, _ = h.subscribe(t, "", "postsByTag", "news")
	assert.Equal(t, len(sub.Records()), 2)

	_, err := h.pub.Subscribe(h.ctx, "", "userPosts", rawArgs(t, ""), nil)
	assert.Equal(t, kindOf(err), application.KindValidation)
	_, err = h.pub.Subscribe(h.ctx, "", "postsByTag", nil, nil)
	assert.Equal(t, kindOf(err), application.KindValidation)
}

func TestTagsPublicationDropsTagsAtZero(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	sub, rec := h.subscribe(t, "", "tags")

	id := h.mustCall(t, alice, "posts.insert", "#go #go #rust").(string)
	recs := sub.Records()
	assert.Equal(t, len(recs), 2)
	assert.Equal(t, recs[0].ID, "go")
	assert.Equal(t, recs[0].Fields["count"], 2)
	assert.Equal(t, recs[1].ID, "rust")
	rec.take()

	h.mustCall(t, alice, "posts.remove", id)
	assert.Equal(t, len(sub.Records()), 0)
	removed := map[string]bool{}
	for _, e := range rec.take() {
		if e.kind == "removed" {
			removed[e.id] = true
		}
	}
	assert.Equal(t, removed, map[string]bool{"go": true, "rust": true})
}

func TestMessagesAreScopedToParticipants(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	bob := h.user(t, "bob", "", "bob@example.com")
	carol := h.user(t, "carol", "", "carol@example.com")

	anon, anonRec := h.subscribe(t, "", "messages")
	assert.Equal(t, anon.Collection(), "")
	bobSub, bobRec := h.subscribe(t, bob, "messages")
	carolSub, carolRec := h.subscribe(t, carol, "messages")

	id := h.mustCall(t, alice, "messages.send", bob, "psst").(string)

	events := bobRec.take()
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].id, id)
	assert.Equal(t, events[0].fields["senderName"], "alice")
	assert.Equal(t, events[0].fields["receiverName"], "bob")
	assert.Equal(t, events[0].fields["read"], false)
	assert.Equal(t, len(bobSub.Records()), 1)

	assert.Equal(t, len(carolRec.take()), 0)
	assert.Equal(t, len(carolSub.Records()), 0)
	assert.Equal(t, len(anonRec.take()), 0)

	aliceSub, _ := h.subscribe(t, alice, "messages")
	assert.Equal(t, len(aliceSub.Records()), 1)
}

func TestUserDisplayDataHidesPrivateFields(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "Alice A", "alice@example.com")

	sub, rec := h.subscribe(t, "", "userDisplayData")
	recs := sub.Records()
	assert.Equal(t, len(recs), 1)
	assert.Equal(t, recs[0].ID, alice)
	assert.Equal(t, recs[0].Fields["username"], "alice")
	_, hasEmails := recs[0].Fields["emails"]
	assert.Equal(t, hasEmails, false)
	profile := recs[0].Fields["profile"].(map[string]any)
	assert.Equal(t, profile["name"], "Alice A")
	assert.Equal(t, profile["isVerified"], false)
	_, hasBio := profile["bio"]
	assert.Equal(t, hasBio, false)

	h.mustCall(t, alice, "updateUserProfile", map[string]any{"name": "Alice A", "bio": "secret plans"})
	assert.Equal(t, len(rec.take()), 0)

	h.mustCall(t, alice, "toggleAccountVerification")
	events := rec.take()
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].kind, "changed")
	assert.Equal(t, events[0].fields["profile"].(map[string]any)["isVerified"], true)
}

func TestUserDataPublishesOnlyCallersAccount(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	bob := h.user(t, "bob", "", "bob@example.com")

	anon, _ := h.subscribe(t, "", "userData")
	assert.Equal(t, len(anon.Records()), 0)

	sub, rec := h.subscribe(t, alice, "userData")
	recs := sub.Records()
	assert.Equal(t, len(recs), 1)
	assert.Equal(t, recs[0].ID, alice)
	emails := recs[0].Fields["emails"].([]any)
	assert.Equal(t, emails[0].(map[string]any)["address"], "alice@example.com")

	h.mustCall(t, bob, "updateUserProfile", map[string]any{"name": "B", "bio": "b"})
	assert.Equal(t, len(rec.take()), 0)

	h.mustCall(t, alice, "updateUserProfile", map[string]any{"name": "A", "bio": "a"})
	events := rec.take()
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].fields["profile"].(map[string]any)["bio"], "a")
}

func TestAllUsersRequiresLogin(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	h.user(t, "bob", "", "bob@example.com")

	anon, _ := h.subscribe(t, "", "allUsers")
	assert.Equal(t, len(anon.Records()), 0)

	sub, _ := h.subscribe(t, alice, "allUsers")
	assert.Equal(t, len(sub.Records()), 2)
}

func TestTransactionsPublication(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	bob := h.user(t, "bob", "", "bob@example.com")
	sub, _ := h.subscribe(t, alice, "userMpesaTransactions")

	h.mustCall(t, alice, "mpesa.simulatePayment", "+254700000001", 100)
	h.mustCall(t, bob, "mpesa.simulatePayment", "+254700000002", 250)

	recs := sub.Records()
	assert.Equal(t, len(recs), 1)
	assert.Equal(t, recs[0].Fields["amount"], json.Number("100"))
	assert.Equal(t, recs[0].Fields["phoneNumber"], "+254700000001")
	assert.Equal(t, recs[0].Fields["status"], "completed")
}

func TestStopWithdrawsDocumentsAndReleasesWatcher(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	id := h.mustCall(t, alice, "posts.insert", "x").(string)

	feed := h.pub.Feed()
	before := feed.Watchers("posts")
	sub, rec := h.subscribe(t, "", "posts")
	assert.Equal(t, feed.Watchers("posts"), before+1)
	rec.take()

	sub.Stop()
	events := rec.take()
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].kind, "removed")
	assert.Equal(t, events[0].id, id)
	assert.Equal(t, feed.Watchers("posts"), before)

	h.mustCall(t, alice, "posts.insert", "y")
	assert.Equal(t, len(rec.take()), 0)
}

func TestSnapshotMatchesSubscription(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", "", "alice@example.com")
	h.mustCall(t, alice, "posts.insert", "#a")
	h.mustCall(t, alice, "posts.insert", "#b")

	coll, recs, err := h.pub.Snapshot(h.ctx, "", "posts", nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, coll, "posts")
	sub, _ := h.subscribe(t, "", "posts")
	assert.Equal(t, recs, sub.Records())

	coll, recs, err = h.pub.Snapshot(h.ctx, "", "messages", nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, coll, "")
	assert.Equal(t, len(recs), 0)
}
