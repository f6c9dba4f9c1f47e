package allocation

import (
	"time"

	"travesia_payments/internal/models"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateCollectingHeader State = "collecting_header"
	StateDistributing     State = "distributing_allocations"
	StateSubmitting       State = "submitting"
	StateSubmitted        State = "submitted"
	StateCancelled        State = "cancelled"
)

// Session is one run of the payment registration wizard. It owns its Engine
// exclusively and is discarded on submit or cancel.
type Session struct {
	ID        string `json:"id"`
	State     State  `json:"state"`
	Engine    Engine `json:"engine"`
	LastError string `json:"last_error,omitempty"`

	// SubmitAttempt counts BeginSubmit calls. SubmitStartedAt is set while
	// Submitting and zero otherwise.
	SubmitAttempt   int       `json:"submit_attempt,omitempty"`
	SubmitStartedAt time.Time `json:"submit_started_at,omitzero"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(id string, debtors []models.Debtor, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateCollectingHeader,
		Engine:    Engine{Debtors: debtors},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) Terminal() bool {
	return s.State == StateSubmitted || s.State == StateCancelled
}

func (s *Session) SetHeader(in HeaderInput, methods MethodSet) (models.PaymentHeader, error) {
	if s.State != StateCollectingHeader {
		return models.PaymentHeader{}, ErrInvalidState
	}
	h, err := s.Engine.Initialize(in, methods)
	if err != nil {
		return models.PaymentHeader{}, err
	}
	s.State = StateDistributing
	return h, nil
}

// Back returns to the header step. Rows stay until a new header is accepted.
func (s *Session) Back() error {
	if s.State != StateDistributing {
		return ErrInvalidState
	}
	s.State = StateCollectingHeader
	return nil
}

func (s *Session) AddDebtor(debtorID string) (models.AllocationRow, error) {
	if s.State != StateDistributing {
		return models.AllocationRow{}, ErrInvalidState
	}
	return s.Engine.AddDebtor(debtorID)
}

func (s *Session) RemoveRow(index int) error {
	if s.State != StateDistributing {
		return ErrInvalidState
	}
	return s.Engine.RemoveRow(index)
}

func (s *Session) SetRowAmount(index int, amount decimal.Decimal) (decimal.Decimal, error) {
	if s.State != StateDistributing {
		return decimal.Zero, ErrInvalidState
	}
	return s.Engine.SetRowAmount(index, amount)
}

func (s *Session) ChangeRowDebt(index int, debtID string) (models.AllocationRow, error) {
	if s.State != StateDistributing {
		return models.AllocationRow{}, ErrInvalidState
	}
	return s.Engine.ChangeRowDebt(index, debtID)
}

// BeginSubmit validates the distribution and moves the session to Submitting.
// A session already submitting rejects the call so a double click cannot send twice.
func (s *Session) BeginSubmit(now time.Time) (Distribution, error) {
	if s.State == StateSubmitting {
		return Distribution{}, ErrSubmitInFlight
	}
	if s.State != StateDistributing {
		return Distribution{}, ErrInvalidState
	}
	d, err := s.Engine.Validate()
	if err != nil {
		return Distribution{}, err
	}
	s.State = StateSubmitting
	s.LastError = ""
	s.SubmitAttempt++
	s.SubmitStartedAt = now
	return d, nil
}

// RecoverStaleSubmit reverts a session stuck in Submitting for longer than
// after, as left behind when the submitting process died. The payment id does
// not change, so a retry is answered as a replay if the first attempt landed.
func (s *Session) RecoverStaleSubmit(now time.Time, after time.Duration) bool {
	if s.State != StateSubmitting || after <= 0 || s.SubmitStartedAt.IsZero() {
		return false
	}
	if now.Sub(s.SubmitStartedAt) <= after {
		return false
	}
	_ = s.FailSubmit(ErrSubmitAbandoned)
	return true
}

func (s *Session) CompleteSubmit() error {
	if s.State != StateSubmitting {
		return ErrInvalidState
	}
	s.State = StateSubmitted
	s.SubmitStartedAt = time.Time{}
	return nil
}

// FailSubmit reverts to Distributing keeping every row so the user can retry.
func (s *Session) FailSubmit(cause error) error {
	if s.State != StateSubmitting {
		return ErrInvalidState
	}
	s.State = StateDistributing
	s.SubmitStartedAt = time.Time{}
	if cause != nil {
		s.LastError = cause.Error()
	}
	return nil
}

func (s *Session) Cancel() error {
	if s.State == StateSubmitting {
		return ErrSubmitInFlight
	}
	if s.Terminal() {
		return ErrInvalidState
	}
	s.State = StateCancelled
	return nil
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s

	if s.Engine.Header != nil {
		h := *s.Engine.Header
		if h.BankReference != nil {
			ref := *h.BankReference
			h.BankReference = &ref
		}
		c.Engine.Header = &h
	}

	if s.Engine.Debtors != nil {
		c.Engine.Debtors = make([]models.Debtor, len(s.Engine.Debtors))
		for i, d := range s.Engine.Debtors {
			d.Debts = append([]models.Debt(nil), d.Debts...)
			c.Engine.Debtors[i] = d
		}
	}
	if s.Engine.Rows != nil {
		c.Engine.Rows = append([]models.AllocationRow(nil), s.Engine.Rows...)
	}
	return &c
}
