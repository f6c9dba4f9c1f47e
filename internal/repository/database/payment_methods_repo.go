package database

import (
	"context"
	"fmt"

	"travesia_payments/internal/config/connections/postgres"
	"travesia_payments/internal/models"

	"github.com/sirupsen/logrus"
)

type PaymentMethodsRepo struct {
	pg  *postgres.Postgres
	log *logrus.Logger
}

func NewPaymentMethodsRepo(pg *postgres.Postgres, log *logrus.Logger) *PaymentMethodsRepo {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PaymentMethodsRepo{pg: pg, log: log}
}

func (r *PaymentMethodsRepo) ListPaymentMethods(ctx context.Context) (models.PaymentMethods, error) {
	rows, err := r.pg.Pool.Query(ctx, `
		SELECT code, label, icon, requires_reference
		FROM payment_methods
		WHERE active
		ORDER BY sort_order, code
	`)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	out := make(models.PaymentMethods, 0)
	for rows.Next() {
		var (
			pm   models.PaymentMethod
			icon string
		)
		if err := rows.Scan(&pm.Code, &pm.Label, &icon, &pm.RequiresReference); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		key, err := models.ParseIconKey(icon)
		if err != nil {
			r.log.Warnf("[METHODS][WARN] code=%s: %v; using default icon", pm.Code, err)
			key = models.IconDefault
		}
		pm.Icon = key
		out = append(out, pm)
	}
	return out, rows.Err()
}
