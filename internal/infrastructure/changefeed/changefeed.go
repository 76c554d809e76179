// Package changefeed wraps repositories so every committed write is reported to a
// livequery.Feed before the write call returns.
package changefeed

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/oksasatya/go-social-sync/internal/domain/repository"
	"github.com/oksasatya/go-social-sync/internal/livequery"
)

// Collection names as seen by subscribers.
const (
	CollectionUsers        = "users"
	CollectionPosts        = "posts"
	CollectionTags         = "tags"
	CollectionMessages     = "messages"
	CollectionTransactions = "mpesaTransactions"
)

// Repositories bundles the store a service layer writes through.
type Repositories struct {
	Users        repository.UserRepository
	Posts        repository.PostRepository
	Tags         repository.TagRepository
	Messages     repository.MessageRepository
	Transactions repository.TransactionRepository
}

// Wrap returns repos with every write reported to feed.
func Wrap(repos Repositories, feed *livequery.Feed) Repositories {
	locks := &keyLocks{}
	return Repositories{
		Users:        &userRepo{UserRepository: repos.Users, feed: feed, locks: locks},
		Posts:        &postRepo{PostRepository: repos.Posts, feed: feed, locks: locks},
		Tags:         &tagRepo{TagRepository: repos.Tags, feed: feed, locks: locks},
		Messages:     &messageRepo{MessageRepository: repos.Messages, feed: feed, locks: locks},
		Transactions: &transactionRepo{TransactionRepository: repos.Transactions, feed: feed, locks: locks},
	}
}

// keyLocks serializes write-then-emit per document so two writers to the same document
// publish in the order they committed. Documents hashing to different stripes proceed
// in parallel.
type keyLocks [64]sync.Mutex

func (l *keyLocks) lock(collection, id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(collection))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(id))
	m := &l[h.Sum32()%uint32(len(l))]
	m.Lock()
	return m.Unlock
}

func emit(ctx context.Context, feed *livequery.Feed, collection string, op livequery.Op, id string, doc, before livequery.Document) {
	feed.Publish(ctx, livequery.Change{Collection: collection, Op: op, ID: id, Doc: doc, Before: before})
}
