package allocation

import (
	"errors"
	"testing"
	"time"

	"travesia_payments/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDistributingSession(t *testing.T, total string, debtors ...models.Debtor) *Session {
	t.Helper()
	s := NewSession("sess-1", debtors, time.Now())
	_, err := s.SetHeader(HeaderInput{TotalAmount: dec(total), PaymentMethodCode: "CASH"}, testMethods)
	require.NoError(t, err)
	require.Equal(t, StateDistributing, s.State)
	return s
}

func TestSessionHeaderStep(t *testing.T) {
	s := NewSession("sess-1", nil, time.Now())
	assert.Equal(t, StateCollectingHeader, s.State)

	_, err := s.AddDebtor("A")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = s.SetHeader(HeaderInput{PaymentMethodCode: "CASH"}, testMethods)
	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, StateCollectingHeader, s.State)
}

func TestSessionBackAndReinitialize(t *testing.T) {
	s := newDistributingSession(t, "500", debtor("A", "Ana", "500"))
	_, err := s.AddDebtor("A")
	require.NoError(t, err)

	require.NoError(t, s.Back())
	assert.Equal(t, StateCollectingHeader, s.State)
	assert.Len(t, s.Engine.Rows, 1)
	assert.ErrorIs(t, s.Back(), ErrInvalidState)

	_, err = s.SetHeader(HeaderInput{TotalAmount: dec("800"), PaymentMethodCode: "CASH"}, testMethods)
	require.NoError(t, err)
	assert.Empty(t, s.Engine.Rows)
}

func TestSessionSubmitLifecycle(t *testing.T) {
	s := newDistributingSession(t, "500", debtor("A", "Ana", "500"))
	_, err := s.AddDebtor("A")
	require.NoError(t, err)

	d, err := s.BeginSubmit(time.Now())
	require.NoError(t, err)
	assertAmount(t, "500", d.Assigned)
	assert.Equal(t, StateSubmitting, s.State)

	_, err = s.BeginSubmit(time.Now())
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	_, err = s.SetRowAmount(0, dec("1"))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, s.Cancel(), ErrSubmitInFlight)

	require.NoError(t, s.CompleteSubmit())
	assert.Equal(t, StateSubmitted, s.State)
	assert.True(t, s.Terminal())
	assert.ErrorIs(t, s.Cancel(), ErrInvalidState)
}

func TestSessionSubmitFailureKeepsRows(t *testing.T) {
	s := newDistributingSession(t, "700", debtor("A", "Ana", "500"), debtor("B", "Bruno", "200"))
	for _, id := range []string{"A", "B"} {
		_, err := s.AddDebtor(id)
		require.NoError(t, err)
	}

	_, err := s.BeginSubmit(time.Now())
	require.NoError(t, err)
	require.NoError(t, s.FailSubmit(errors.New("backend returned 503")))

	assert.Equal(t, StateDistributing, s.State)
	assert.Equal(t, "backend returned 503", s.LastError)
	require.Len(t, s.Engine.Rows, 2)
	assertAmount(t, "500", s.Engine.Rows[0].AmountToApply)
	assertAmount(t, "200", s.Engine.Rows[1].AmountToApply)

	_, err = s.BeginSubmit(time.Now())
	require.NoError(t, err)
	assert.Empty(t, s.LastError)
}

func TestSessionSubmitRejectsImbalance(t *testing.T) {
	s := newDistributingSession(t, "900", debtor("A", "Ana", "500"))
	_, err := s.AddDebtor("A")
	require.NoError(t, err)

	_, err = s.BeginSubmit(time.Now())
	var imb *ImbalanceError
	require.True(t, errors.As(err, &imb))
	assert.Equal(t, StateDistributing, s.State)
}

func TestSessionCancel(t *testing.T) {
	s := newDistributingSession(t, "900", debtor("A", "Ana", "500"))
	require.NoError(t, s.Cancel())
	assert.Equal(t, StateCancelled, s.State)
	assert.ErrorIs(t, s.CompleteSubmit(), ErrInvalidState)
}

func TestSessionCloneIsDeep(t *testing.T) {
	ref := "REF-1"
	s := NewSession("sess-1", []models.Debtor{debtor("A", "Ana", "500", "100")}, time.Now())
	_, err := s.SetHeader(HeaderInput{TotalAmount: dec("500"), PaymentMethodCode: "CASH", BankReference: &ref}, testMethods)
	require.NoError(t, err)
	_, err = s.AddDebtor("A")
	require.NoError(t, err)

	c := s.Clone()
	_, err = c.SetRowAmount(0, dec("10"))
	require.NoError(t, err)
	*c.Engine.Header.BankReference = "CHANGED"
	c.Engine.Debtors[0].Debts[0].PackageName = "changed"

	assertAmount(t, "500", s.Engine.Rows[0].AmountToApply)
	assert.Equal(t, "REF-1", *s.Engine.Header.BankReference)
	assert.Equal(t, "Package A", s.Engine.Debtors[0].Debts[0].PackageName)
}

func TestSessionRecoverStaleSubmit(t *testing.T) {
	s := newDistributingSession(t, "500", debtor("A", "Ana", "500"))
	_, err := s.AddDebtor("A")
	require.NoError(t, err)

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err = s.BeginSubmit(t0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.SubmitAttempt)
	assert.Equal(t, t0, s.SubmitStartedAt)

	assert.False(t, s.RecoverStaleSubmit(t0.Add(10*time.Second), 15*time.Second))
	assert.False(t, s.RecoverStaleSubmit(t0.Add(time.Hour), 0))
	assert.Equal(t, StateSubmitting, s.State)

	assert.True(t, s.RecoverStaleSubmit(t0.Add(16*time.Second), 15*time.Second))
	assert.Equal(t, StateDistributing, s.State)
	assert.Equal(t, ErrSubmitAbandoned.Error(), s.LastError)
	assert.True(t, s.SubmitStartedAt.IsZero())
	require.Len(t, s.Engine.Rows, 1)

	assert.False(t, s.RecoverStaleSubmit(t0.Add(time.Hour), 15*time.Second))

	_, err = s.BeginSubmit(t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, s.SubmitAttempt)
}
