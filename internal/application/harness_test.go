package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/oksasatya/go-social-sync/config"
	"github.com/oksasatya/go-social-sync/internal/application"
	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/changefeed"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/memory"
	"github.com/oksasatya/go-social-sync/internal/livequery"
	"github.com/oksasatya/go-social-sync/pkg/mailer"
)

type fakeMail struct {
	mu   sync.Mutex
	jobs []mailer.EmailJob
	err  error
}

func (m *fakeMail) Enqueue(_ context.Context, job mailer.EmailJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *fakeMail) sent() []mailer.EmailJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.EmailJob(nil), m.jobs...)
}

type harness struct {
	ctx      context.Context
	cfg      *config.Config
	repos    changefeed.Repositories
	pub      *livequery.Publisher
	gw       *application.Gateway
	verify   *application.VerificationService
	payments *application.PaymentService
	tokens   *memory.Tokens
	sessions *memory.Sessions
	mail     *fakeMail
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		AppName:                   "go-social-sync",
		CompanyName:               "Social Web App",
		VerifyEmailURL:            "http://localhost:3000/verify-email",
		ResetPasswordURL:          "http://localhost:3000/reset-password",
		MailSendEnabled:           true,
		VerificationToggleEnabled: true,
		FeedLimit:                 50,
		TagLimit:                  50,
	}
	store := memory.NewStore()
	feed := livequery.NewFeed()
	repos := changefeed.Wrap(changefeed.Repositories{
		Users:        store.Users(),
		Posts:        store.Posts(),
		Tags:         store.Tags(),
		Messages:     store.Messages(),
		Transactions: store.Transactions(),
	}, feed)

	h := &harness{
		ctx:      context.Background(),
		cfg:      cfg,
		repos:    repos,
		pub:      livequery.NewPublisher(feed, nil),
		tokens:   memory.NewTokens(),
		sessions: memory.NewSessions(),
		mail:     &fakeMail{},
	}
	counter := application.NewTagCounter(repos.Tags, nil)
	h.verify = application.NewVerificationService(repos.Users, h.tokens, h.mail, cfg, nil)
	h.payments = application.NewPaymentService(repos.Transactions, nil)
	h.gw = application.NewGateway(application.Services{
		Posts:        application.NewPostService(repos.Posts, repos.Users, counter, nil),
		Messages:     application.NewMessageService(repos.Messages, repos.Users, nil),
		Profile:      application.NewProfileService(repos.Users, h.sessions, nil, nil, nil),
		Verification: h.verify,
		Payments:     h.payments,
	}, nil)
	pubs := &application.Publications{Repos: repos, FeedLimit: cfg.FeedLimit, TagLimit: cfg.TagLimit}
	pubs.Register(h.pub)
	return h
}

// user creates an account and returns its id.
func (h *harness) user(t *testing.T, username, name, email string) string {
	t.Helper()
	u := application.NewUser(email, "x", username, name)
	assert.Equal(t, h.repos.Users.Create(h.ctx, u), nil)
	return u.ID
}

func rawArgs(t *testing.T, params ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, err := json.Marshal(p)
		assert.Equal(t, err, nil)
		out = append(out, b)
	}
	return out
}

func (h *harness) call(t *testing.T, caller, method string, params ...any) (any, error) {
	t.Helper()
	return h.gw.Call(h.ctx, caller, method, rawArgs(t, params...))
}

func (h *harness) mustCall(t *testing.T, caller, method string, params ...any) any {
	t.Helper()
	res, err := h.call(t, caller, method, params...)
	if err != nil {
		t.Fatalf("%s: %v", method, err)
	}
	return res
}

func (h *harness) post(t *testing.T, id string) *entity.Post {
	t.Helper()
	p, err := h.repos.Posts.GetByID(h.ctx, id)
	if err != nil {
		t.Fatalf("load post %s: %v", id, err)
	}
	return p
}

func (h *harness) tagCount(t *testing.T, name string) int {
	t.Helper()
	tag, err := h.repos.Tags.Get(h.ctx, name)
	if err != nil {
		return 0
	}
	if tag.Count <= 0 {
		t.Fatalf("tag %s persisted with count %d", name, tag.Count)
	}
	return tag.Count
}

func kindOf(err error) application.Kind {
	var e *application.Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

type event struct {
	kind       string
	collection string
	id         string
	fields     livequery.Fields
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Added(collection, id string, f livequery.Fields) {
	r.mu.Lock()
	r.events = append(r.events, event{kind: "added", collection: collection, id: id, fields: f})
	r.mu.Unlock()
}

func (r *recorder) Changed(collection, id string, f livequery.Fields, _ []string) {
	r.mu.Lock()
	r.events = append(r.events, event{kind: "changed", collection: collection, id: id, fields: f})
	r.mu.Unlock()
}

func (r *recorder) Removed(collection, id string) {
	r.mu.Lock()
	r.events = append(r.events, event{kind: "removed", collection: collection, id: id})
	r.mu.Unlock()
}

func (r *recorder) take() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func (h *harness) subscribe(t *testing.T, caller, name string, params ...any) (*livequery.Subscription, *recorder) {
	t.Helper()
	rec := &recorder{}
	sub, err := h.pub.Subscribe(h.ctx, caller, name, rawArgs(t, params...), rec)
	if err != nil {
		t.Fatalf("subscribe %s: %v", name, err)
	}
	t.Cleanup(sub.Stop)
	return sub, rec
}

