package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionStatusCompleted  = "completed"
	TransactionTypeVerification = "verification"
)

// Transaction is a simulated M-Pesa payment record. TransactionID is unique.
type Transaction struct {
	ID            string
	UserID        string
	TransactionID string
	PhoneNumber   string
	Amount        decimal.Decimal
	Status        string
	Type          string
	CreatedAt     time.Time
}

func (t *Transaction) DocumentID() string { return t.ID }

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
