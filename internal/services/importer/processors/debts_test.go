package processors

import (
	"context"
	"errors"
	"testing"

	"travesia_payments/internal/ports"
	"travesia_payments/internal/repository/database"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDebtors struct {
	rows []database.DebtorRow
}

func (f *fakeDebtors) UpdateOrCreate(ctx context.Context, d database.DebtorRow) (*database.DebtorRow, error) {
	d.ID = "debtor-" + d.IdentityCard
	f.rows = append(f.rows, d)
	return &d, nil
}

type fakeDebts struct {
	rows []database.DebtRow
	err  error
}

func (f *fakeDebts) UpsertByNumber(ctx context.Context, row database.DebtRow) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rows = append(f.rows, row)
	return "debt-" + row.Number, nil
}

func TestDebtsProcessor_ProcessBatch(t *testing.T) {
	debtors, debts := &fakeDebtors{}, &fakeDebts{}
	p := &DebtsProcessor{Debtors: debtors, Debts: debts}

	ctx := context.WithValue(context.Background(), ports.CtxImportRecordID, "rec-1")
	err := p.ProcessBatch(ctx, []map[string]string{
		{"identity_card": "7788", "full_name": "Rojas Ana", "debt_number": "T-1", "package_name": "Cusco 2026", "amount_total": "1 500,00", "balance": "1200.5"},
		{"identity_card": "9911", "full_name": "Paz Bruno", "debt_number": "T-2", "amount_total": "800"},
		{"identity_card": "", "debt_number": "T-3", "amount_total": "10"},
		{"identity_card": "5555", "debt_number": "T-4", "amount_total": "abc"},
		{"identity_card": "5555", "debt_number": "T-5", "amount_total": "10", "balance": "-1"},
	})
	require.NoError(t, err)

	require.Len(t, debtors.rows, 2)
	assert.Equal(t, "active", debtors.rows[0].Status)

	require.Len(t, debts.rows, 2)
	assert.Equal(t, "debtor-7788", debts.rows[0].DebtorID)
	assert.True(t, debts.rows[0].AmountTotal.Equal(decimal.RequireFromString("1500")))
	assert.True(t, debts.rows[0].Balance.Equal(decimal.RequireFromString("1200.5")))
	assert.True(t, debts.rows[1].Balance.Equal(decimal.NewFromInt(800)), "balance defaults to amount_total")
}

func TestDebtsProcessor_totalColumn(t *testing.T) {
	p := &DebtsProcessor{Debtors: &fakeDebtors{}, Debts: &fakeDebts{}}
	ctx := context.Background()

	_, err := p.processRow(ctx, map[string]string{"identity_card": "7788", "debt_number": "T-1", "total": "250.40"})
	require.NoError(t, err)
	debts := p.Debts.(*fakeDebts)
	require.Len(t, debts.rows, 1)
	assert.True(t, debts.rows[0].AmountTotal.Equal(decimal.RequireFromString("250.40")))
	assert.True(t, debts.rows[0].Balance.Equal(decimal.RequireFromString("250.40")))

	_, err = p.processRow(ctx, map[string]string{"identity_card": "7788", "debt_number": "T-2", "balance": "10"})
	assert.EqualError(t, err, "missing amount_total")
	_, err = p.processRow(ctx, map[string]string{"identity_card": "7788", "debt_number": "T-3", "amount_total": "  "})
	assert.EqualError(t, err, "missing amount_total")
	assert.Len(t, debts.rows, 1)
}

func TestDebtsProcessor_rowErrorsDoNotAbortBatch(t *testing.T) {
	p := &DebtsProcessor{Debtors: &fakeDebtors{}, Debts: &fakeDebts{err: errors.New("constraint")}}
	err := p.ProcessBatch(context.Background(), []map[string]string{
		{"identity_card": "1", "debt_number": "X", "amount_total": "1"},
	})
	assert.NoError(t, err)
}

func TestDebtsProcessor_requiresRepos(t *testing.T) {
	err := (&DebtsProcessor{}).ProcessBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestNormalizeAmount(t *testing.T) {
	cases := map[string]string{
		"":          "0",
		" 1 234,50": "1234.50",
		"1,234.50":  "1234.50",
		"99.9":      "99.9",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeAmount(in), in)
	}
}

func TestRegister(t *testing.T) {
	reg := Register(nil, &DebtsProcessor{})
	assert.Contains(t, reg, "noop")
	assert.Contains(t, reg, "import_debts")
}
