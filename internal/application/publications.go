package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/changefeed"
	"github.com/oksasatya/go-social-sync/internal/livequery"
)

// Publications builds the live views clients subscribe to.
type Publications struct {
	Repos     changefeed.Repositories
	FeedLimit int
	TagLimit  int
}

// Register adds every publication to p.
func (pb *Publications) Register(p *livequery.Publisher) {
	p.Register("posts", pb.posts)
	p.Register("userPosts", pb.userPosts)
	p.Register("searchPosts", pb.searchPosts)
	p.Register("postsByTag", pb.postsByTag)
	p.Register("tags", pb.tags)
	p.Register("messages", pb.messages)
	p.Register("userMpesaTransactions", pb.transactions)
	p.Register("userData", pb.userData)
	p.Register("userDisplayData", pb.userDisplayData)
	p.Register("allUsers", pb.allUsers)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func postFields(d livequery.Document) livequery.Fields {
	p := d.(*entity.Post)
	comments := make([]any, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, map[string]any{
			"_id":       c.ID,
			"text":      c.Text,
			"createdAt": stamp(c.CreatedAt),
			"ownerId":   c.OwnerID,
			"username":  c.Username,
		})
	}
	f := livequery.Fields{
		"text":         p.Text,
		"createdAt":    stamp(p.CreatedAt),
		"ownerId":      nullable(p.OwnerID),
		"username":     p.Username,
		"tags":         append([]string{}, p.Tags...),
		"likes":        append([]string{}, p.Likes...),
		"likeCount":    p.LikeCount,
		"comments":     comments,
		"commentCount": p.CommentCount,
	}
	if p.ImageURL != "" {
		f["imageUri"] = p.ImageURL
	}
	return f
}

func (pb *Publications) postQuery(f repository.PostFilter) *livequery.Query {
	f.Limit = pb.FeedLimit
	return &livequery.Query{
		Collection: changefeed.CollectionPosts,
		Match: func(d livequery.Document) bool {
			p, ok := d.(*entity.Post)
			return ok && f.Matches(p)
		},
		Less: func(a, b livequery.Document) bool {
			return repository.PostNewerFirst(a.(*entity.Post), b.(*entity.Post))
		},
		Limit: f.Limit,
		Fetch: func(ctx context.Context) ([]livequery.Document, error) {
			posts, err := pb.Repos.Posts.List(ctx, f)
			return documents(posts), err
		},
		Project: postFields,
	}
}

func documents[T livequery.Document](items []T) []livequery.Document {
	out := make([]livequery.Document, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	return out
}

func (pb *Publications) posts(context.Context, string, []json.RawMessage) (*livequery.Query, error) {
	return pb.postQuery(repository.PostFilter{}), nil
}

func (pb *Publications) userPosts(_ context.Context, _ string, params []json.RawMessage) (*livequery.Query, error) {
	owner, err := Arg[string](params, 0, "userId", false)
	if err != nil {
		return nil, err
	}
	if err := NonEmpty(owner, "userId"); err != nil {
		return nil, err
	}
	return pb.postQuery(repository.PostFilter{OwnerID: owner}), nil
}

// searchPosts returns no view for an empty term.
func (pb *Publications) searchPosts(_ context.Context, _ string, params []json.RawMessage) (*livequery.Query, error) {
	term, err := Arg[string](params, 0, "searchTerm", false)
	if err != nil {
		return nil, err
	}
	if term == "" {
		return nil, nil
	}
	return pb.postQuery(repository.PostFilter{Search: term}), nil
}

func (pb *Publications) postsByTag(_ context.Context, _ string, params []json.RawMessage) (*livequery.Query, error) {
	tag, err := Arg[string](params, 0, "tag", false)
	if err != nil {
		return nil, err
	}
	if err := NonEmpty(tag, "tag"); err != nil {
		return nil, err
	}
	return pb.postQuery(repository.PostFilter{Tag: tag}), nil
}

func (pb *Publications) tags(context.Context, string, []json.RawMessage) (*livequery.Query, error) {
	return &livequery.Query{
		Collection: changefeed.CollectionTags,
		Match: func(d livequery.Document) bool {
			t, ok := d.(*entity.Tag)
			return ok && t.Count > 0
		},
		Less: func(a, b livequery.Document) bool {
			return repository.TagMostUsedFirst(a.(*entity.Tag), b.(*entity.Tag))
		},
		Limit: pb.TagLimit,
		Fetch: func(ctx context.Context) ([]livequery.Document, error) {
			tags, err := pb.Repos.Tags.List(ctx, pb.TagLimit)
			return documents(tags), err
		},
		Project: func(d livequery.Document) livequery.Fields {
			t := d.(*entity.Tag)
			return livequery.Fields{"name": t.Name, "count": t.Count, "createdAt": stamp(t.CreatedAt)}
		},
	}, nil
}

// messages is empty and terminal for anonymous callers.
func (pb *Publications) messages(_ context.Context, caller string, _ []json.RawMessage) (*livequery.Query, error) {
	if caller == "" {
		return nil, nil
	}
	return &livequery.Query{
		Collection: changefeed.CollectionMessages,
		Match: func(d livequery.Document) bool {
			m, ok := d.(*entity.Message)
			return ok && m.Involves(caller)
		},
		Less: func(a, b livequery.Document) bool {
			return repository.MessageNewerFirst(a.(*entity.Message), b.(*entity.Message))
		},
		Fetch: func(ctx context.Context) ([]livequery.Document, error) {
			msgs, err := pb.Repos.Messages.ListForUser(ctx, caller, 0)
			return documents(msgs), err
		},
		Project: func(d livequery.Document) livequery.Fields {
			m := d.(*entity.Message)
			return livequery.Fields{
				"text":         m.Text,
				"createdAt":    stamp(m.CreatedAt),
				"senderId":     m.SenderID,
				"senderName":   m.SenderName,
				"receiverId":   m.ReceiverID,
				"receiverName": m.ReceiverName,
				"read":         m.Read,
			}
		},
	}, nil
}

func (pb *Publications) transactions(_ context.Context, caller string, _ []json.RawMessage) (*livequery.Query, error) {
	if caller == "" {
		return nil, nil
	}
	return &livequery.Query{
		Collection: changefeed.CollectionTransactions,
		Match: func(d livequery.Document) bool {
			t, ok := d.(*entity.Transaction)
			return ok && t.UserID == caller
		},
		Less: func(a, b livequery.Document) bool {
			return repository.TransactionNewerFirst(a.(*entity.Transaction), b.(*entity.Transaction))
		},
		Fetch: func(ctx context.Context) ([]livequery.Document, error) {
			txs, err := pb.Repos.Transactions.ListByUser(ctx, caller)
			return documents(txs), err
		},
		Project: func(d livequery.Document) livequery.Fields {
			t := d.(*entity.Transaction)
			return livequery.Fields{
				"userId":        t.UserID,
				"transactionId": t.TransactionID,
				"phoneNumber":   t.PhoneNumber,
				"amount":        json.Number(t.Amount.String()),
				"status":        t.Status,
				"type":          t.Type,
				"createdAt":     stamp(t.CreatedAt),
			}
		},
	}, nil
}

func profileFields(p entity.Profile) map[string]any {
	out := map[string]any{"isVerified": p.IsVerified}
	if p.Name != "" {
		out["name"] = p.Name
	}
	if p.Bio != "" {
		out["bio"] = p.Bio
	}
	if p.Avatar != "" {
		out["avatar"] = p.Avatar
	}
	if p.VerifiedAt != nil {
		out["verifiedAt"] = stamp(*p.VerifiedAt)
	}
	if p.VerificationMethod != "" {
		out["verificationMethod"] = p.VerificationMethod
	}
	if d := p.VerificationDetails; d != nil {
		out["verificationDetails"] = map[string]any{
			"transactionId": d.TransactionID,
			"plan":          d.Plan,
			"amount":        json.Number(d.Amount.String()),
			"date":          stamp(d.Date),
		}
	}
	if p.CreatedAt != nil {
		out["createdAt"] = stamp(*p.CreatedAt)
	}
	if p.UpdatedAt != nil {
		out["updatedAt"] = stamp(*p.UpdatedAt)
	}
	return out
}

// ownUserFields is the full field set a user sees of their own account.
func ownUserFields(d livequery.Document) livequery.Fields {
	u := d.(*entity.User)
	emails := make([]any, 0, len(u.Emails))
	for _, e := range u.Emails {
		emails = append(emails, map[string]any{"address": e.Address, "verified": e.Verified})
	}
	f := livequery.Fields{
		"emails":    emails,
		"profile":   profileFields(u.Profile),
		"createdAt": stamp(u.CreatedAt),
	}
	if u.Username != "" {
		f["username"] = u.Username
	}
	return f
}

// displayUserFields is what any client may see of any user.
func displayUserFields(d livequery.Document) livequery.Fields {
	u := d.(*entity.User)
	profile := map[string]any{"isVerified": u.Profile.IsVerified}
	if u.Profile.Name != "" {
		profile["name"] = u.Profile.Name
	}
	if u.Profile.Avatar != "" {
		profile["avatar"] = u.Profile.Avatar
	}
	f := livequery.Fields{"profile": profile}
	if u.Username != "" {
		f["username"] = u.Username
	}
	return f
}

func userLess(a, b livequery.Document) bool {
	return a.DocumentID() < b.DocumentID()
}

func (pb *Publications) userData(_ context.Context, caller string, _ []json.RawMessage) (*livequery.Query, error) {
	if caller == "" {
		return nil, nil
	}
	return &livequery.Query{
		Collection: changefeed.CollectionUsers,
		Match: func(d livequery.Document) bool {
			return d.DocumentID() == caller
		},
		Less: userLess,
		Fetch: func(ctx context.Context) ([]livequery.Document, error) {
			u, err := pb.Repos.Users.GetByID(ctx, caller)
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return []livequery.Document{u}, nil
		},
		Project: ownUserFields,
	}, nil
}

func (pb *Publications) displayUsers() *livequery.Query {
	return &livequery.Query{
		Collection: changefeed.CollectionUsers,
		Less:       userLess,
		Fetch: func(ctx context.Context) ([]livequery.Document, error) {
			users, err := pb.Repos.Users.List(ctx)
			return documents(users), err
		},
		Project: displayUserFields,
	}
}

func (pb *Publications) userDisplayData(context.Context, string, []json.RawMessage) (*livequery.Query, error) {
	return pb.displayUsers(), nil
}

func (pb *Publications) allUsers(_ context.Context, caller string, _ []json.RawMessage) (*livequery.Query, error) {
	if caller == "" {
		return nil, nil
	}
	return pb.displayUsers(), nil
}
