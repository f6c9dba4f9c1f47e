package processors

import (
	"context"
	"errors"
	"fmt"

	mg "travesia_payments/internal/config/connections/mongo"
	"travesia_payments/internal/metrics"
	"travesia_payments/internal/repository/database"
	"travesia_payments/internal/repository/journal"

	"github.com/sirupsen/logrus"
)

type DebtorUpserter interface {
	UpdateOrCreate(ctx context.Context, d database.DebtorRow) (*database.DebtorRow, error)
}

type DebtUpserter interface {
	UpsertByNumber(ctx context.Context, row database.DebtRow) (string, error)
}

// DebtsProcessor loads debtors and their package debts from a spreadsheet.
// Expected columns: identity_card, full_name, debt_number, package_name,
// amount_total and balance (defaults to amount_total).
type DebtsProcessor struct {
	MG      *mg.Mongo
	Debtors DebtorUpserter
	Debts   DebtUpserter
}

func (p *DebtsProcessor) Type() string { return "import_debts" }

func (p *DebtsProcessor) ProcessBatch(ctx context.Context, batch []map[string]string) error {
	if p.Debtors == nil || p.Debts == nil {
		return errors.New("debts processor: repositories not configured")
	}

	recordID := importRecordID(ctx)
	log := logrus.WithField("import_record_id", recordID)
	log.Debugf("[PROC][debts][START] rows=%d", len(batch))

	success, failed := 0, 0
	for i, m := range batch {
		debtID, err := p.processRow(ctx, m)
		if err != nil {
			failed++
			log.Warnf("[PROC][debts][ERR] row=%d: %v", i, err)
			journal.LogFail(ctx, p.MG, journal.LogParams{
				ImportRecordID: recordID,
				ModelType:      journal.ModelTypeDebts,
				ModelID:        field(m, "debt_number", "number"),
				Payload:        m,
				Errors:         err.Error(),
			})
			continue
		}
		success++
		journal.Log(ctx, p.MG, journal.LogParams{
			ImportRecordID: recordID,
			ModelType:      journal.ModelTypeDebts,
			ModelID:        debtID,
			Payload:        m,
			Status:         journal.StatusDone,
		})
	}

	metrics.ImportedRows.WithLabelValues(p.Type()).Add(float64(success))
	log.Infof("[PROC][debts][DONE] total=%d success=%d failed=%d", len(batch), success, failed)
	return nil
}

func (p *DebtsProcessor) processRow(ctx context.Context, m map[string]string) (string, error) {
	card := field(m, "identity_card", "ci", "document")
	if card == "" {
		return "", errors.New("missing identity_card")
	}
	number := field(m, "debt_number", "number")
	if number == "" {
		return "", errors.New("missing debt_number")
	}

	rawTotal := field(m, "amount_total", "total")
	if rawTotal == "" {
		return "", errors.New("missing amount_total")
	}
	total, err := parseAmount(rawTotal)
	if err != nil {
		return "", err
	}
	balance := total
	if raw := field(m, "balance"); raw != "" {
		if balance, err = parseAmount(raw); err != nil {
			return "", err
		}
	}
	if balance.IsNegative() {
		return "", fmt.Errorf("negative balance %s", balance.StringFixed(2))
	}

	debtor, err := p.Debtors.UpdateOrCreate(ctx, database.DebtorRow{
		IdentityCard: card,
		FullName:     field(m, "full_name", "name"),
		Status:       firstNonEmpty(m["status"], "active"),
	})
	if err != nil {
		return "", fmt.Errorf("debtor %s: %w", card, err)
	}

	id, err := p.Debts.UpsertByNumber(ctx, database.DebtRow{
		DebtorID:    debtor.ID,
		Number:      number,
		PackageName: field(m, "package_name", "package"),
		AmountTotal: total,
		Balance:     balance,
	})
	if err != nil {
		return "", fmt.Errorf("debt %s: %w", number, err)
	}
	return id, nil
}
