package processors

import (
	"context"
	"fmt"
	"strings"

	"travesia_payments/internal/ports"

	"github.com/shopspring/decimal"
)

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// field returns the first non-empty column among the given header aliases.
func field(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

// normalizeAmount accepts "1 234,50" and "1234.50" style numbers.
func normalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "0"
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	}
	return strings.ReplaceAll(s, ",", ".")
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(normalizeAmount(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d.Round(2), nil
}

func importRecordID(ctx context.Context) string {
	if s, ok := ctx.Value(ports.CtxImportRecordID).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
