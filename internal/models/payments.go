package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentHeader struct {
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaymentMethodCode string          `json:"payment_method_code"`
	BankReference     *string         `json:"bank_reference,omitempty"`
}

// AllocationRow applies part of the payment to one debt of one debtor.
type AllocationRow struct {
	DebtorID      string          `json:"debtor_id"`
	DebtorName    string          `json:"debtor_name"`
	Debt          Debt            `json:"debt"`
	AmountToApply decimal.Decimal `json:"amount_to_apply"`
}

type Application struct {
	DebtID        string          `json:"debt_id"`
	AmountToApply decimal.Decimal `json:"amount_to_apply"`
}

// Submission is the balanced distribution sent to the backend.
type Submission struct {
	PaymentID         string          `json:"-"`
	SubmittedBy       string          `json:"-"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaymentMethodCode string          `json:"payment_method_code"`
	BankReference     *string         `json:"bank_reference,omitempty"`
	Applications      []Application   `json:"applications"`
}

type ReceiptLine struct {
	DebtorName    string
	IdentityCard  string
	PackageName   string
	DebtID        string
	AmountToApply decimal.Decimal
}

type Receipt struct {
	PaymentID         string
	SubmittedAt       time.Time
	SubmittedBy       string
	TotalAmount       decimal.Decimal
	PaymentMethodCode string
	BankReference     *string
	Lines             []ReceiptLine
}
