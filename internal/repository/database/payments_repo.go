package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"travesia_payments/internal/config/connections/postgres"
	"travesia_payments/internal/models"
	"travesia_payments/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var ErrDebtNotFound = errors.New("debt not found")

type PaymentRepo struct {
	pg *postgres.Postgres
}

func NewPaymentRepo(pg *postgres.Postgres) *PaymentRepo {
	return &PaymentRepo{pg: pg}
}

const insertPaymentQuery = `
	INSERT INTO payments (
		id, total_amount, payment_method_code, bank_reference, submitted_by, created_at
	) VALUES (
		$1::uuid, $2::numeric, $3, $4, NULLIF($5::text, ''), NOW()
	)
	ON CONFLICT (id) DO NOTHING
`

const insertApplicationQuery = `
	INSERT INTO payment_applications (id, payment_id, debt_id, amount, created_at)
	VALUES (gen_random_uuid(), $1::uuid, $2::uuid, $3::numeric, NOW())
`

const decrementBalanceQuery = `
	UPDATE debts SET balance = balance - $1::numeric, updated_at = NOW()
	WHERE id = $2::uuid
`

// SubmitPayment stores the payment and its applications atomically. The
// payment id doubles as idempotency key; debts are locked in id order and
// re-checked against their current balance.
func (r *PaymentRepo) SubmitPayment(ctx context.Context, sub models.Submission) error {
	tx, err := r.pg.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, insertPaymentQuery,
		sub.PaymentID, sub.TotalAmount.String(), sub.PaymentMethodCode, sub.BankReference, sub.SubmittedBy,
	)
	if err != nil {
		return fmt.Errorf("payment insert failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrAlreadySubmitted
	}

	perDebt, ids := sumPerDebt(sub.Applications)

	balances, err := lockBalances(ctx, tx, ids)
	if err != nil {
		return err
	}
	if err := checkBalances(ids, perDebt, balances); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, a := range sub.Applications {
		batch.Queue(insertApplicationQuery, sub.PaymentID, a.DebtID, a.AmountToApply.String())
		batch.Queue(decrementBalanceQuery, a.AmountToApply.String(), a.DebtID)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("application write failed: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("application batch close: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// sumPerDebt totals the applications per debt and returns the debt ids
// sorted, which is the order rows are locked in.
func sumPerDebt(apps []models.Application) (map[string]decimal.Decimal, []string) {
	perDebt := make(map[string]decimal.Decimal, len(apps))
	for _, a := range apps {
		perDebt[a.DebtID] = perDebt[a.DebtID].Add(a.AmountToApply)
	}
	ids := make([]string, 0, len(perDebt))
	for id := range perDebt {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return perDebt, ids
}

func checkBalances(ids []string, perDebt, balances map[string]decimal.Decimal) error {
	for _, id := range ids {
		bal, ok := balances[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrDebtNotFound, id)
		}
		if perDebt[id].GreaterThan(bal) {
			return fmt.Errorf("%w: debt %s has %s, applying %s", ports.ErrBalanceChanged, id, bal.StringFixed(2), perDebt[id].StringFixed(2))
		}
	}
	return nil
}

func lockBalances(ctx context.Context, tx pgx.Tx, ids []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := tx.Query(ctx,
		`SELECT id::text, balance::text FROM debts WHERE id::text = ANY($1::text[]) ORDER BY id FOR UPDATE`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("lock acquisition failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, bal string
		if err := rows.Scan(&id, &bal); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		d, err := decimal.NewFromString(bal)
		if err != nil {
			return nil, fmt.Errorf("debt %s balance %q: %w", id, bal, err)
		}
		out[id] = d
	}
	return out, rows.Err()
}
