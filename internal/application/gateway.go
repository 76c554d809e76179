package application

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	methodCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_method_calls_total",
			Help: "Procedure calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)
	methodDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_method_duration_seconds",
			Help:    "Procedure call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Procedure is a named remote procedure. caller is empty for anonymous calls.
type Procedure func(ctx context.Context, caller string, args Args) (any, error)

// Services bundles the domain services the gateway dispatches to.
type Services struct {
	Posts        *PostService
	Messages     *MessageService
	Profile      *ProfileService
	Verification *VerificationService
	Payments     *PaymentService
}

// Gateway is the table of named procedures reachable over the sync socket and REST.
type Gateway struct {
	procs  map[string]Procedure
	logger *logrus.Logger
}

func NewGateway(s Services, logger *logrus.Logger) *Gateway {
	g := &Gateway{procs: map[string]Procedure{}, logger: logger}
	g.registerPosts(s.Posts)
	g.registerMessages(s.Messages)
	g.registerAccount(s.Profile, s.Verification)
	g.registerPayments(s.Payments)
	return g
}

func (g *Gateway) Register(name string, fn Procedure) {
	g.procs[name] = fn
}

func (g *Gateway) Names() []string {
	out := make([]string, 0, len(g.procs))
	for n := range g.procs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Call runs the named procedure. The returned error is always an *Error.
func (g *Gateway) Call(ctx context.Context, caller, name string, args []json.RawMessage) (any, error) {
	fn, ok := g.procs[name]
	if !ok {
		methodCalls.WithLabelValues("unknown", string(KindNotFound)).Inc()
		return nil, NotFound("Method '" + name + "' not found")
	}
	start := time.Now()
	res, err := fn(ctx, caller, Args(args))
	methodDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		e := AsError(err)
		methodCalls.WithLabelValues(name, string(e.Kind)).Inc()
		if g.logger != nil {
			entry := g.logger.WithFields(logrus.Fields{"method": name, "user_id": caller, "kind": e.Kind})
			if e.Kind == KindInternal {
				entry.WithError(errors.Unwrap(e)).Error("method failed")
			} else {
				entry.Debug(e.Reason)
			}
		}
		return nil, e
	}
	methodCalls.WithLabelValues(name, "ok").Inc()
	return res, nil
}

func (g *Gateway) registerPosts(s *PostService) {
	if s == nil {
		return
	}
	g.Register("posts.insert", func(ctx context.Context, caller string, args Args) (any, error) {
		text, err := Arg[string](args, 0, "text", false)
		if err != nil {
			return nil, err
		}
		imageURL, err := Arg[string](args, 1, "imageUrl", true)
		if err != nil {
			return nil, err
		}
		if text == "" && imageURL == "" {
			return nil, Invalid(matchFailed, map[string]string{"text": "must not be empty without an image"})
		}
		return s.Create(ctx, caller, text, imageURL)
	})
	g.Register("posts.remove", func(ctx context.Context, caller string, args Args) (any, error) {
		id, err := Arg[string](args, 0, "postId", false)
		if err != nil {
			return nil, err
		}
		return nil, s.Remove(ctx, caller, id)
	})
	g.Register("posts.edit", func(ctx context.Context, caller string, args Args) (any, error) {
		id, err := Arg[string](args, 0, "postId", false)
		if err != nil {
			return nil, err
		}
		text, err := Arg[string](args, 1, "newText", false)
		if err != nil {
			return nil, err
		}
		return nil, s.Edit(ctx, caller, id, text)
	})
	g.Register("posts.like", func(ctx context.Context, caller string, args Args) (any, error) {
		id, err := Arg[string](args, 0, "postId", false)
		if err != nil {
			return nil, err
		}
		return s.ToggleLike(ctx, caller, id)
	})
	g.Register("posts.comment", func(ctx context.Context, caller string, args Args) (any, error) {
		id, err := Arg[string](args, 0, "postId", false)
		if err != nil {
			return nil, err
		}
		text, err := Arg[string](args, 1, "commentText", false)
		if err != nil {
			return nil, err
		}
		if err := NonEmpty(text, "commentText"); err != nil {
			return nil, err
		}
		return s.Comment(ctx, caller, id, text)
	})
}

func (g *Gateway) registerMessages(s *MessageService) {
	if s == nil {
		return
	}
	g.Register("messages.send", func(ctx context.Context, caller string, args Args) (any, error) {
		to, err := Arg[string](args, 0, "receiverId", false)
		if err != nil {
			return nil, err
		}
		text, err := Arg[string](args, 1, "text", false)
		if err != nil {
			return nil, err
		}
		if err := NonEmpty(text, "text"); err != nil {
			return nil, err
		}
		return s.Send(ctx, caller, to, text)
	})
}

func (g *Gateway) registerAccount(p *ProfileService, v *VerificationService) {
	if p != nil {
		g.Register("updateUserProfile", func(ctx context.Context, caller string, args Args) (any, error) {
			in, err := Struct[ProfileInput](args, 0, "profileData")
			if err != nil {
				return nil, err
			}
			return p.Update(ctx, caller, in)
		})
	}
	if v == nil {
		return
	}
	g.Register("sendVerificationEmail", func(ctx context.Context, caller string, _ Args) (any, error) {
		if err := v.SendVerificationEmail(ctx, caller); err != nil {
			return nil, err
		}
		return map[string]bool{"sent": true}, nil
	})
	g.Register("toggleAccountVerification", func(ctx context.Context, caller string, _ Args) (any, error) {
		return v.ToggleVerification(ctx, caller)
	})
	g.Register("verifyUserWithMpesa", func(ctx context.Context, caller string, args Args) (any, error) {
		in, err := Struct[MpesaVerification](args, 0, "paymentDetails")
		if err != nil {
			return nil, err
		}
		if !in.Amount.IsPositive() {
			return nil, Invalid(matchFailed, map[string]string{"amount": "must be greater than 0"})
		}
		if err := v.VerifyWithMpesa(ctx, caller, in); err != nil {
			return nil, err
		}
		return map[string]bool{"success": true}, nil
	})
}

func (g *Gateway) registerPayments(s *PaymentService) {
	if s == nil {
		return
	}
	g.Register("mpesa.simulatePayment", func(ctx context.Context, caller string, args Args) (any, error) {
		phone, err := Arg[string](args, 0, "phoneNumber", false)
		if err != nil {
			return nil, err
		}
		amount, err := Arg[decimal.Decimal](args, 1, "amount", false)
		if err != nil {
			return nil, err
		}
		if !amount.IsPositive() {
			return nil, Invalid(matchFailed, map[string]string{"amount": "must be greater than 0"})
		}
		return s.SimulatePayment(ctx, caller, phone, amount)
	})
}
