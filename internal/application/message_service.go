package application

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

type MessageService struct {
	Messages repository.MessageRepository
	Users    repository.UserRepository
	Logger   *logrus.Logger
}

func NewMessageService(messages repository.MessageRepository, users repository.UserRepository, logger *logrus.Logger) *MessageService {
	return &MessageService{Messages: messages, Users: users, Logger: logger}
}

// Send stores a direct message from caller to receiverID. Both names are captured now
// and never refreshed.
func (s *MessageService) Send(ctx context.Context, caller, receiverID, text string) (string, error) {
	if caller == "" {
		return "", NotAuthorized("You must be logged in to send a message")
	}
	receiver, err := s.Users.GetByID(ctx, receiverID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", &Error{Kind: KindUserNotFound, Reason: "Recipient user not found"}
	}
	if err != nil {
		return "", s.fail(err, "load receiver failed", receiverID)
	}
	senderName, err := displayName(ctx, s.Users, caller)
	if err != nil {
		return "", s.fail(err, "load sender failed", caller)
	}
	m := &entity.Message{
		Text:         text,
		CreatedAt:    time.Now().UTC(),
		SenderID:     caller,
		SenderName:   senderName,
		ReceiverID:   receiver.ID,
		ReceiverName: receiver.DisplayName(),
	}
	if err := s.Messages.Create(ctx, m); err != nil {
		return "", s.fail(err, "create message failed", caller)
	}
	return m.ID, nil
}

func (s *MessageService) fail(err error, msg, userID string) *Error {
	if s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Error(msg)
	}
	return Internal("", err)
}
