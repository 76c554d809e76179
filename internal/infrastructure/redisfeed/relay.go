// Package redisfeed relays change feed events between server instances that share a
// store. Locally published changes go out on a Redis channel; changes received from
// other instances are dispatched to local subscriptions only, so they never echo back.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/changefeed"
	"github.com/oksasatya/go-social-sync/internal/livequery"
)

const Channel = "livequery:changes"

type envelope struct {
	Origin     string          `json:"origin"`
	Collection string          `json:"collection"`
	Op         livequery.Op    `json:"op"`
	ID         string          `json:"id"`
	Doc        json.RawMessage `json:"doc,omitempty"`
}

type decodeFunc func([]byte) (livequery.Document, error)

func decodeAs[T any, P interface {
	*T
	livequery.Document
}]() decodeFunc {
	return func(b []byte) (livequery.Document, error) {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return P(&v), nil
	}
}

var decoders = map[string]decodeFunc{
	changefeed.CollectionUsers:        decodeAs[entity.User](),
	changefeed.CollectionPosts:        decodeAs[entity.Post](),
	changefeed.CollectionTags:         decodeAs[entity.Tag](),
	changefeed.CollectionMessages:     decodeAs[entity.Message](),
	changefeed.CollectionTransactions: decodeAs[entity.Transaction](),
}

type Relay struct {
	rdb      *redis.Client
	feed     *livequery.Feed
	logger   *logrus.Logger
	instance string
	pubsub   *redis.PubSub
}

func NewRelay(rdb *redis.Client, feed *livequery.Feed, logger *logrus.Logger, instance string) *Relay {
	return &Relay{rdb: rdb, feed: feed, logger: logger, instance: instance}
}

// Start hooks the relay into the feed and begins receiving remote changes until ctx ends.
func (r *Relay) Start(ctx context.Context) error {
	r.pubsub = r.rdb.Subscribe(ctx, Channel)
	if _, err := r.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}
	r.feed.OnPublish(r.forward)
	go r.listen(ctx)
	r.logger.WithField("channel", Channel).Info("change relay subscribed")
	return nil
}

func (r *Relay) Stop() error {
	if r.pubsub != nil {
		return r.pubsub.Close()
	}
	return nil
}

func (r *Relay) forward(ctx context.Context, c livequery.Change) {
	payload, err := encode(r.instance, c)
	if err != nil {
		r.logger.WithError(err).WithField("collection", c.Collection).Error("encode change")
		return
	}
	if err := r.rdb.Publish(context.WithoutCancel(ctx), Channel, payload).Err(); err != nil {
		r.logger.WithError(err).WithField("collection", c.Collection).Warn("publish change")
	}
}

func (r *Relay) listen(ctx context.Context) {
	ch := r.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = r.pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle(ctx, []byte(msg.Payload))
		}
	}
}

// handle dispatches a remote change and reports whether it was applied.
func (r *Relay) handle(ctx context.Context, payload []byte) bool {
	origin, c, err := decode(payload)
	if err != nil {
		r.logger.WithError(err).Warn("drop malformed change")
		return false
	}
	if origin == r.instance {
		return false
	}
	r.feed.Dispatch(ctx, c)
	return true
}

func encode(origin string, c livequery.Change) ([]byte, error) {
	env := envelope{Origin: origin, Collection: c.Collection, Op: c.Op, ID: c.ID}
	if c.Doc != nil {
		doc, err := json.Marshal(c.Doc)
		if err != nil {
			return nil, err
		}
		env.Doc = doc
	}
	return json.Marshal(env)
}

func decode(payload []byte) (string, livequery.Change, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", livequery.Change{}, err
	}
	c := livequery.Change{Collection: env.Collection, Op: env.Op, ID: env.ID}
	if env.Op == livequery.OpDelete || len(env.Doc) == 0 {
		return env.Origin, c, nil
	}
	dec, ok := decoders[env.Collection]
	if !ok {
		return "", c, fmt.Errorf("unknown collection %q", env.Collection)
	}
	doc, err := dec(env.Doc)
	if err != nil {
		return "", c, fmt.Errorf("decode %s document: %w", env.Collection, err)
	}
	c.Doc = doc
	return env.Origin, c, nil
}
