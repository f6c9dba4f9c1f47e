package allocation

import (
	"strings"

	"travesia_payments/internal/models"

	"github.com/shopspring/decimal"
)

var epsilon = decimal.New(1, -2)

// Epsilon is the tolerance for the total-vs-assigned check.
func Epsilon() decimal.Decimal { return epsilon }

type HeaderInput struct {
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaymentMethodCode string          `json:"payment_method_code"`
	BankReference     *string         `json:"bank_reference,omitempty"`
}

type MethodSet interface {
	Find(code string) (models.PaymentMethod, bool)
}

// Engine distributes one received payment across the debts of the loaded
// debtors. The aggregate sum is only enforced by Validate, so rows may be
// transiently over or under the total while being edited.
type Engine struct {
	Header  *models.PaymentHeader  `json:"header,omitempty"`
	Debtors []models.Debtor        `json:"debtors"`
	Rows    []models.AllocationRow `json:"rows"`
}

type Distribution struct {
	Header   models.PaymentHeader   `json:"header"`
	Rows     []models.AllocationRow `json:"rows"`
	Assigned decimal.Decimal        `json:"assigned"`
}

// Applications skips rows that apply nothing.
func (d Distribution) Applications() []models.Application {
	apps := make([]models.Application, 0, len(d.Rows))
	for _, r := range d.Rows {
		if r.AmountToApply.IsZero() {
			continue
		}
		apps = append(apps, models.Application{DebtID: r.Debt.ID, AmountToApply: r.AmountToApply})
	}
	return apps
}

func (d Distribution) Submission(paymentID string) models.Submission {
	return models.Submission{
		PaymentID:         paymentID,
		TotalAmount:       d.Header.TotalAmount,
		PaymentMethodCode: d.Header.PaymentMethodCode,
		BankReference:     d.Header.BankReference,
		Applications:      d.Applications(),
	}
}

type Summary struct {
	Total     decimal.Decimal `json:"total"`
	Assigned  decimal.Decimal `json:"assigned"`
	Remaining decimal.Decimal `json:"remaining"`
	Balanced  bool            `json:"balanced"`
	Banner    string          `json:"banner"`
}

func NewEngine(debtors []models.Debtor) *Engine {
	return &Engine{Debtors: debtors}
}

func (e *Engine) Initialize(in HeaderInput, methods MethodSet) (models.PaymentHeader, error) {
	fe := FieldErrors{}

	total := in.TotalAmount.Round(2)
	if !total.IsPositive() {
		fe["total_amount"] = "amount must be greater than zero"
	}

	code := strings.TrimSpace(in.PaymentMethodCode)
	var method models.PaymentMethod
	switch {
	case code == "":
		fe["payment_method_code"] = "payment method is required"
	case methods == nil:
		fe["payment_method_code"] = "unknown payment method"
	default:
		pm, ok := methods.Find(code)
		if !ok {
			fe["payment_method_code"] = "unknown payment method"
		} else {
			method = pm
			code = pm.Code
		}
	}

	ref := trimmedOrNil(in.BankReference)
	if method.RequiresReference && ref == nil {
		fe["bank_reference"] = "bank reference is required for this payment method"
	}

	if len(fe) > 0 {
		return models.PaymentHeader{}, fe
	}

	h := models.PaymentHeader{
		TotalAmount:       total,
		PaymentMethodCode: code,
		BankReference:     ref,
	}
	e.Header = &h
	e.Rows = nil
	return h, nil
}

func (e *Engine) Total() decimal.Decimal {
	if e.Header == nil {
		return decimal.Zero
	}
	return e.Header.TotalAmount
}

func (e *Engine) Assigned() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range e.Rows {
		sum = sum.Add(r.AmountToApply)
	}
	return sum
}

func (e *Engine) Remaining() decimal.Decimal {
	return e.Total().Sub(e.Assigned())
}

// Candidates lists the debtors that have no row yet, in load order.
func (e *Engine) Candidates() []models.Debtor {
	out := make([]models.Debtor, 0, len(e.Debtors))
	for _, d := range e.Debtors {
		if !e.hasDebtor(d.ID) {
			out = append(out, d)
		}
	}
	return out
}

// AddDebtor targets the debtor's first debt and pre-fills the smaller of the
// unallocated remainder and that debt's balance.
func (e *Engine) AddDebtor(debtorID string) (models.AllocationRow, error) {
	if e.Header == nil {
		return models.AllocationRow{}, ErrNotInitialized
	}
	debtor, ok := e.findDebtor(debtorID)
	if !ok {
		return models.AllocationRow{}, ErrUnknownDebtor
	}
	if e.hasDebtor(debtorID) {
		return models.AllocationRow{}, ErrDuplicateDebtor
	}

	remaining := e.Remaining()
	if !remaining.IsPositive() {
		return models.AllocationRow{}, ErrFullyDistributed
	}

	debt, ok := debtor.FirstDebt()
	if !ok {
		return models.AllocationRow{}, ErrNoDebts
	}

	amount := decimal.Min(remaining, debt.Balance)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	row := models.AllocationRow{
		DebtorID:      debtor.ID,
		DebtorName:    debtor.FullName,
		Debt:          debt,
		AmountToApply: amount,
	}
	e.Rows = append(e.Rows, row)
	return row, nil
}

func (e *Engine) RemoveRow(index int) error {
	if index < 0 || index >= len(e.Rows) {
		return ErrRowIndex
	}
	e.Rows = append(e.Rows[:index], e.Rows[index+1:]...)
	return nil
}

// SetRowAmount stores amount clamped to [0, debt balance] and returns the stored value.
func (e *Engine) SetRowAmount(index int, amount decimal.Decimal) (decimal.Decimal, error) {
	if index < 0 || index >= len(e.Rows) {
		return decimal.Zero, ErrRowIndex
	}
	row := &e.Rows[index]
	v := clamp(amount.Round(2), decimal.Zero, row.Debt.Balance)
	row.AmountToApply = v
	return v, nil
}

// ChangeRowDebt retargets a row to another debt of the same debtor and resets its amount.
func (e *Engine) ChangeRowDebt(index int, debtID string) (models.AllocationRow, error) {
	if index < 0 || index >= len(e.Rows) {
		return models.AllocationRow{}, ErrRowIndex
	}
	row := &e.Rows[index]

	debtor, ok := e.findDebtor(row.DebtorID)
	if !ok {
		return models.AllocationRow{}, ErrUnknownDebtor
	}
	debt, ok := debtor.FindDebt(debtID)
	if !ok {
		return models.AllocationRow{}, ErrDebtNotOwned
	}

	row.Debt = debt
	row.AmountToApply = decimal.Zero
	return *row, nil
}

func (e *Engine) Validate() (Distribution, error) {
	if e.Header == nil {
		return Distribution{}, ErrNotInitialized
	}
	for _, r := range e.Rows {
		if r.AmountToApply.IsNegative() || r.AmountToApply.GreaterThan(r.Debt.Balance) {
			return Distribution{}, ErrRowOutOfBounds
		}
	}

	remaining := e.Remaining()
	if remaining.Abs().GreaterThanOrEqual(epsilon) {
		return Distribution{}, &ImbalanceError{Remaining: remaining}
	}

	rows := make([]models.AllocationRow, len(e.Rows))
	copy(rows, e.Rows)
	return Distribution{
		Header:   *e.Header,
		Rows:     rows,
		Assigned: e.Assigned(),
	}, nil
}

func (e *Engine) Summary() Summary {
	remaining := e.Remaining()
	s := Summary{
		Total:     e.Total(),
		Assigned:  e.Assigned(),
		Remaining: remaining,
		Balanced:  e.Header != nil && remaining.Abs().LessThan(epsilon),
	}
	switch {
	case e.Header == nil:
		s.Banner = "Enter the payment details"
	case s.Balanced:
		s.Banner = "Payment fully distributed"
	default:
		s.Banner = (&ImbalanceError{Remaining: remaining}).Message()
	}
	return s
}

func (e *Engine) findDebtor(id string) (models.Debtor, bool) {
	for _, d := range e.Debtors {
		if d.ID == id {
			return d, true
		}
	}
	return models.Debtor{}, false
}

func (e *Engine) hasDebtor(id string) bool {
	for _, r := range e.Rows {
		if r.DebtorID == id {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
