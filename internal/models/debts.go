package models

import "github.com/shopspring/decimal"

// Debt is a snapshot of what a debtor owes for one package at fetch time.
// The backend stays authoritative for Balance.
type Debt struct {
	ID          string          `json:"id"`
	PackageName string          `json:"package_name"`
	Balance     decimal.Decimal `json:"balance"`
}
