package entity

import "time"

// Message is a direct message; both names are snapshots taken at send time.
type Message struct {
	ID           string
	Text         string
	CreatedAt    time.Time
	SenderID     string
	SenderName   string
	ReceiverID   string
	ReceiverName string
	Read         bool
}

func (m *Message) DocumentID() string { return m.ID }

// Involves reports whether userID sent or received the message.
func (m *Message) Involves(userID string) bool {
	return userID != "" && (m.SenderID == userID || m.ReceiverID == userID)
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
