package database

import (
	"strings"
	"testing"

	"travesia_payments/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinedRow(debtorID, name, debtID, balance string) debtorDebtRow {
	return debtorDebtRow{
		DebtorID:     debtorID,
		FullName:     name,
		IdentityCard: "CI-" + debtorID,
		Debt:         models.Debt{ID: debtID, PackageName: "pkg-" + debtID, Balance: decimal.RequireFromString(balance)},
	}
}

func TestGroupDebtorRows(t *testing.T) {
	got := groupDebtorRows([]debtorDebtRow{
		joinedRow("7", "Paz Bruno", "b-old", "100"),
		joinedRow("7", "Paz Bruno", "a-new", "50"),
		joinedRow("3", "Rojas Ana", "c1", "500"),
		joinedRow("7", "Paz Bruno", "z-late", "10"),
	})

	require.Len(t, got, 2)
	assert.Equal(t, "7", got[0].ID)
	assert.Equal(t, "CI-7", got[0].IdentityCard)
	require.Len(t, got[0].Debts, 3)
	assert.Equal(t, []string{"b-old", "a-new", "z-late"}, []string{got[0].Debts[0].ID, got[0].Debts[1].ID, got[0].Debts[2].ID})
	assert.True(t, got[0].Debts[1].Balance.Equal(decimal.NewFromInt(50)))

	assert.Equal(t, "3", got[1].ID)
	require.Len(t, got[1].Debts, 1)
}

func TestGroupDebtorRows_empty(t *testing.T) {
	got := groupDebtorRows(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListDebtorsQuery(t *testing.T) {
	q := listDebtorsQuery("debtors")
	assert.Contains(t, q, "FROM debtors d")
	assert.Contains(t, q, "t.balance > 0")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(q), "ORDER BY full_name, d.id, t.created_at, t.id"))
}
