package application

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

const maxTransactionIDAttempts = 3

// Plans lists the verification plans and their prices.
var Plans = map[string]decimal.Decimal{
	"basic":   decimal.NewFromInt(100),
	"premium": decimal.NewFromInt(250),
}

// PaymentResult is returned by mpesa.simulatePayment.
type PaymentResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transactionId"`
}

// PaymentService simulates an M-Pesa charge. Nothing leaves the process.
type PaymentService struct {
	Transactions repository.TransactionRepository
	Logger       *logrus.Logger
	// NewTransactionID may be replaced in tests.
	NewTransactionID func() string
}

func NewPaymentService(txs repository.TransactionRepository, logger *logrus.Logger) *PaymentService {
	return &PaymentService{Transactions: txs, Logger: logger, NewTransactionID: randomTransactionID}
}

func randomTransactionID() string {
	return "MP" + strconv.Itoa(rand.Intn(10_000_000))
}

func (s *PaymentService) SimulatePayment(ctx context.Context, caller, phoneNumber string, amount decimal.Decimal) (PaymentResult, error) {
	if caller == "" {
		return PaymentResult{}, NotAuthorized("You must be logged in to make a payment")
	}
	var err error
	for attempt := 0; attempt < maxTransactionIDAttempts; attempt++ {
		t := &entity.Transaction{
			UserID:        caller,
			TransactionID: s.NewTransactionID(),
			PhoneNumber:   phoneNumber,
			Amount:        amount,
			Status:        entity.TransactionStatusCompleted,
			Type:          entity.TransactionTypeVerification,
			CreatedAt:     time.Now().UTC(),
		}
		err = s.Transactions.Create(ctx, t)
		if err == nil {
			return PaymentResult{Success: true, Message: "Payment processed successfully", TransactionID: t.TransactionID}, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", caller).Error("record transaction failed")
	}
	return PaymentResult{}, Internal("Payment failed", err)
}
