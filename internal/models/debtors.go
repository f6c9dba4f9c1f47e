package models

// Debtor is a client with one or more outstanding package debts.
type Debtor struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	IdentityCard string `json:"identity_card"`
	Debts        []Debt `json:"debts"`
}

func (d Debtor) FirstDebt() (Debt, bool) {
	if len(d.Debts) == 0 {
		return Debt{}, false
	}
	return d.Debts[0], true
}

func (d Debtor) FindDebt(id string) (Debt, bool) {
	for _, debt := range d.Debts {
		if debt.ID == id {
			return debt, true
		}
	}
	return Debt{}, false
}
