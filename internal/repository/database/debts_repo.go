package database

import (
	"context"
	"fmt"
	"strings"

	"travesia_payments/internal/config/connections/postgres"

	"github.com/shopspring/decimal"
)

type DebtsRepo struct {
	pg    *postgres.Postgres
	table string
}

func NewDebtsRepo(pg *postgres.Postgres, table string) *DebtsRepo {
	if table == "" {
		table = "debts"
	}
	return &DebtsRepo{
		pg:    pg,
		table: table,
	}
}

type DebtRow struct {
	DebtorID    string
	Number      string
	PackageName string
	AmountTotal decimal.Decimal
	Balance     decimal.Decimal
}

// UpsertByNumber creates the debt or refreshes package name and amounts of an existing one.
func (r *DebtsRepo) UpsertByNumber(ctx context.Context, row DebtRow) (string, error) {
	row.Number = strings.TrimSpace(row.Number)
	row.PackageName = strings.TrimSpace(row.PackageName)
	if row.Number == "" {
		return "", fmt.Errorf("empty debt number")
	}
	if row.Balance.IsNegative() {
		return "", fmt.Errorf("negative balance %s", row.Balance)
	}

	query := `
		INSERT INTO ` + r.table + ` (
			id, debtor_id, number, package_name, amount_total, balance, created_at, updated_at
		) VALUES (
			gen_random_uuid(), $1::uuid, $2, $3, $4::numeric, $5::numeric, NOW(), NOW()
		)
		ON CONFLICT (number) DO UPDATE SET
			debtor_id = EXCLUDED.debtor_id,
			package_name = COALESCE(NULLIF(EXCLUDED.package_name, ''), ` + r.table + `.package_name),
			amount_total = EXCLUDED.amount_total,
			balance = EXCLUDED.balance,
			updated_at = NOW()
		RETURNING id::text
	`

	var id string
	err := r.pg.Pool.QueryRow(ctx, query,
		row.DebtorID, row.Number, row.PackageName, row.AmountTotal.String(), row.Balance.String(),
	).Scan(&id)
	return id, err
}
