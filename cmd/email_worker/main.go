package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/config"
	"github.com/oksasatya/go-social-sync/pkg/helpers"
	"github.com/oksasatya/go-social-sync/pkg/mailer"
)

// Consumes verification and password reset email jobs queued by the server and
// delivers them through Mailgun.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env, cfg.LogLevel)

	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; email worker disabled")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQEmailQueue == "" {
		logger.Fatal("RabbitMQ not configured")
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		logger.Fatal("Mailgun not configured")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.WithError(err).Fatal("amqp dial")
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.WithError(err).Fatal("amqp channel")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(16, 0, false); err != nil {
		logger.WithError(err).Fatal("qos")
	}
	if _, err := ch.QueueDeclare(cfg.RabbitMQEmailQueue, true, false, false, false, nil); err != nil {
		logger.WithError(err).Fatal("queue declare")
	}
	msgs, err := ch.Consume(cfg.RabbitMQEmailQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.WithError(err).Fatal("consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := &worker{mail: mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender), logger: logger}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			w.handle(ctx, msg)
		}
	}()

	logger.WithField("queue", cfg.RabbitMQEmailQueue).Info("email worker listening")
	<-ctx.Done()
	logger.Info("shutting down...")
	_ = ch.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}

var errBadJob = errors.New("malformed email job")

type worker struct {
	mail   *mailer.Mailgun
	logger *logrus.Logger
}

// handle acks delivered jobs and drops jobs that can never succeed. A failed send is
// requeued once.
func (w *worker) handle(ctx context.Context, msg amqp.Delivery) {
	log := w.logger.WithFields(logrus.Fields{"message_id": msg.MessageId, "template": msg.Type})
	var job mailer.EmailJob
	if err := json.Unmarshal(msg.Body, &job); err != nil || job.To == "" {
		log.WithError(errors.Join(errBadJob, err)).Warn("dropping job")
		_ = msg.Nack(false, false)
		return
	}
	if _, _, _, err := job.Content(); err != nil {
		log.WithError(err).Error("render failed; dropping job")
		_ = msg.Nack(false, false)
		return
	}
	id, err := w.mail.Deliver(context.WithoutCancel(ctx), &job)
	if err != nil {
		log.WithError(err).Warn("send failed; requeueing")
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	log.WithField("mailgun_id", id).Info("email sent")
	_ = msg.Ack(false)
}
