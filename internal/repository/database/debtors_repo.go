package database

import (
	"context"
	"fmt"
	"strings"

	"travesia_payments/internal/config/connections/postgres"
	"travesia_payments/internal/models"
	"travesia_payments/internal/utils"

	"github.com/shopspring/decimal"
)

type DebtorRepo struct {
	pg    *postgres.Postgres
	table string
}

func NewDebtorRepo(pg *postgres.Postgres, table string) *DebtorRepo {
	if table == "" {
		table = "debtors"
	}
	return &DebtorRepo{
		pg:    pg,
		table: table,
	}
}

type DebtorRow struct {
	ID           string
	IdentityCard string
	LastName     string
	FirstName    string
	MiddleName   string
	FullName     string
	Status       string
}

func (r *DebtorRepo) UpdateOrCreate(ctx context.Context, d DebtorRow) (*DebtorRow, error) {
	d.IdentityCard = strings.TrimSpace(d.IdentityCard)
	if d.IdentityCard == "" {
		return nil, fmt.Errorf("empty identity card")
	}

	if strings.TrimSpace(d.FullName) != "" &&
		strings.TrimSpace(d.LastName) == "" &&
		strings.TrimSpace(d.FirstName) == "" &&
		strings.TrimSpace(d.MiddleName) == "" {
		d.LastName, d.FirstName, d.MiddleName = utils.ParseFullName(d.FullName)
	}
	if strings.TrimSpace(d.Status) == "" {
		d.Status = "active"
	}

	query := `
		INSERT INTO ` + r.table + ` (
			id, identity_card, last_name, first_name, middle_name, status, created_at, updated_at
		) VALUES (
			gen_random_uuid(), $1, $2, $3, $4, $5, NOW(), NOW()
		)
		ON CONFLICT (identity_card) DO UPDATE SET
			last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), ` + r.table + `.last_name),
			first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), ` + r.table + `.first_name),
			middle_name = COALESCE(NULLIF(EXCLUDED.middle_name, ''), ` + r.table + `.middle_name),
			status = COALESCE(NULLIF(EXCLUDED.status, ''), ` + r.table + `.status),
			updated_at = NOW()
		RETURNING id::text, identity_card, last_name, first_name, middle_name, status
	`

	var out DebtorRow
	err := r.pg.Pool.QueryRow(ctx, query,
		d.IdentityCard, d.LastName, d.FirstName, d.MiddleName, d.Status,
	).Scan(&out.ID, &out.IdentityCard, &out.LastName, &out.FirstName, &out.MiddleName, &out.Status)
	if err != nil {
		return nil, err
	}
	out.FullName = strings.Join(strings.Fields(out.LastName+" "+out.FirstName+" "+out.MiddleName), " ")
	return &out, nil
}

// ListDebtors returns active debtors that still owe something. Debts keep
// creation order so the first one is stable between fetches.
func (r *DebtorRepo) ListDebtors(ctx context.Context) ([]models.Debtor, error) {
	rows, err := r.pg.Pool.Query(ctx, listDebtorsQuery(r.table))
	if err != nil {
		return nil, fmt.Errorf("list debtors: %w", err)
	}
	defer rows.Close()

	var joined []debtorDebtRow
	for rows.Next() {
		var (
			row     debtorDebtRow
			balance string
		)
		if err := rows.Scan(&row.DebtorID, &row.FullName, &row.IdentityCard, &row.Debt.ID, &row.Debt.PackageName, &balance); err != nil {
			return nil, fmt.Errorf("scan debtor row: %w", err)
		}
		if row.Debt.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("debt %s balance %q: %w", row.Debt.ID, balance, err)
		}
		joined = append(joined, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list debtors: %w", err)
	}
	return groupDebtorRows(joined), nil
}

// listDebtorsQuery orders debts by creation inside each debtor, which makes
// the first debt the stable default target.
func listDebtorsQuery(table string) string {
	return `
		SELECT d.id::text,
		       concat_ws(' ', NULLIF(d.last_name, ''), NULLIF(d.first_name, ''), NULLIF(d.middle_name, '')) AS full_name,
		       d.identity_card,
		       t.id::text, t.package_name, t.balance::text
		FROM ` + table + ` d
		JOIN debts t ON t.debtor_id = d.id
		WHERE d.status = 'active' AND t.balance > 0
		ORDER BY full_name, d.id, t.created_at, t.id
	`
}

// debtorDebtRow is one line of the debtors x debts join.
type debtorDebtRow struct {
	DebtorID     string
	FullName     string
	IdentityCard string
	Debt         models.Debt
}

// groupDebtorRows folds joined rows into debtors, keeping the order in which
// each debtor and each of its debts first appears.
func groupDebtorRows(rows []debtorDebtRow) []models.Debtor {
	out := make([]models.Debtor, 0)
	index := make(map[string]int)
	for _, row := range rows {
		i, ok := index[row.DebtorID]
		if !ok {
			out = append(out, models.Debtor{ID: row.DebtorID, FullName: row.FullName, IdentityCard: row.IdentityCard})
			i = len(out) - 1
			index[row.DebtorID] = i
		}
		out[i].Debts = append(out[i].Debts, row.Debt)
	}
	return out
}
