package ports

import (
	"context"
	"errors"

	"travesia_payments/internal/models"
)

// ErrAlreadySubmitted is returned by a PaymentSubmitter when the payment id
// was already accepted, which makes a resubmission safe to treat as success.
var ErrAlreadySubmitted = errors.New("payment already submitted")

// ErrBalanceChanged means the authoritative balance no longer covers an application.
var ErrBalanceChanged = errors.New("debt balance changed")

// ErrUnauthorized means the backend rejected the stored token. The token is
// discarded and must be set again before the next call succeeds.
var ErrUnauthorized = errors.New("backend token rejected")

type DebtorSource interface {
	ListDebtors(ctx context.Context) ([]models.Debtor, error)
}

type MethodCatalog interface {
	ListPaymentMethods(ctx context.Context) (models.PaymentMethods, error)
}

type PaymentSubmitter interface {
	SubmitPayment(ctx context.Context, sub models.Submission) error
}

type ReceiptPublisher interface {
	Publish(ctx context.Context, r models.Receipt) error
}

type SessionEvent struct {
	SessionID string
	UserID    string
	Event     string
	Status    string
	Errors    string
	Payload   any
}

type EventLog interface {
	Record(ctx context.Context, ev SessionEvent)
}
