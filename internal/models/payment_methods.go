package models

import (
	"fmt"
	"strings"
)

// IconKey names a console icon for a payment method. Only keys present in
// iconAssets are valid.
type IconKey string

const (
	IconDefault  IconKey = "payment"
	IconCash     IconKey = "cash"
	IconTransfer IconKey = "bank-transfer"
	IconQR       IconKey = "qr"
	IconCard     IconKey = "card"
	IconDeposit  IconKey = "deposit"
)

var iconAssets = map[IconKey]string{
	IconDefault:  "icons/payment.svg",
	IconCash:     "icons/cash.svg",
	IconTransfer: "icons/bank-transfer.svg",
	IconQR:       "icons/qr.svg",
	IconCard:     "icons/card.svg",
	IconDeposit:  "icons/deposit.svg",
}

func ParseIconKey(s string) (IconKey, error) {
	k := IconKey(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := iconAssets[k]; !ok {
		return "", fmt.Errorf("unknown icon key %q", s)
	}
	return k, nil
}

// Asset returns the asset path for k, falling back to the default icon.
func (k IconKey) Asset() string {
	if a, ok := iconAssets[k]; ok {
		return a
	}
	return iconAssets[IconDefault]
}

type PaymentMethod struct {
	Code              string  `json:"code"`
	Label             string  `json:"label"`
	Icon              IconKey `json:"icon"`
	RequiresReference bool    `json:"requires_reference"`
}

type PaymentMethods []PaymentMethod

func (m PaymentMethods) Find(code string) (PaymentMethod, bool) {
	code = strings.TrimSpace(code)
	for _, pm := range m {
		if strings.EqualFold(pm.Code, code) {
			return pm, true
		}
	}
	return PaymentMethod{}, false
}
