package allocation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotInitialized   = errors.New("payment header not set")
	ErrUnknownDebtor    = errors.New("debtor not found")
	ErrDuplicateDebtor  = errors.New("debtor already added")
	ErrNoDebts          = errors.New("debtor has no debts")
	ErrFullyDistributed = errors.New("payment already fully distributed")
	ErrRowIndex         = errors.New("allocation row index out of range")
	ErrDebtNotOwned     = errors.New("debt does not belong to the row's debtor")
	ErrRowOutOfBounds   = errors.New("allocation row amount outside debt balance")
	ErrInvalidState     = errors.New("operation not allowed in current state")
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrSubmitAbandoned  = errors.New("submission did not finish in time, retry to confirm")
)

// FieldErrors maps a header field name to its validation message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "invalid payment header: " + strings.Join(parts, "; ")
}

// ImbalanceError is returned when the rows do not add up to the payment total.
// Remaining is total minus assigned: positive when under-allocated, negative when over.
type ImbalanceError struct {
	Remaining decimal.Decimal
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("allocation imbalance: remaining %s", e.Remaining.StringFixed(2))
}

func (e *ImbalanceError) OverAllocated() bool  { return e.Remaining.IsNegative() }
func (e *ImbalanceError) UnderAllocated() bool { return e.Remaining.IsPositive() }

func (e *ImbalanceError) Message() string {
	if e.OverAllocated() {
		return "Over-allocated by " + e.Remaining.Abs().StringFixed(2)
	}
	return "Remaining to distribute: " + e.Remaining.StringFixed(2)
}
