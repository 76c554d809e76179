// Package mailqueue puts email jobs on the RabbitMQ queue read by cmd/email_worker.
package mailqueue

import (
	"context"
	"errors"

	"github.com/oksasatya/go-social-sync/pkg/helpers"
	"github.com/oksasatya/go-social-sync/pkg/mailer"
)

var ErrNoRecipient = errors.New("email job has no recipient")

type Rabbit struct {
	Pub *helpers.RabbitPublisher
}

func NewRabbit(pub *helpers.RabbitPublisher) *Rabbit {
	return &Rabbit{Pub: pub}
}

func (q *Rabbit) Enqueue(ctx context.Context, job mailer.EmailJob) error {
	if job.To == "" {
		return ErrNoRecipient
	}
	if q.Pub == nil {
		return errors.New("rabbitmq publisher not configured")
	}
	return q.Pub.Publish(ctx, job.Template, job)
}
