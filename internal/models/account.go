package models

import "github.com/shopspring/decimal"

// Account holds the balances and lock flag of one client.
// The total balance is not stored; it is always Available + Held.
type Account struct {
	ClientID  uint16
	Available decimal.Decimal
	Held      decimal.Decimal
	Locked    bool
}

// NewAccount returns a zero balance, unlocked account.
func NewAccount(clientID uint16) Account {
	return Account{
		ClientID:  clientID,
		Available: decimal.Zero,
		Held:      decimal.Zero,
	}
}

func (a Account) Total() decimal.Decimal {
	return a.Available.Add(a.Held)
}

func (a Account) Snapshot() Snapshot {
	return Snapshot{
		ClientID:  a.ClientID,
		Available: a.Available,
		Held:      a.Held,
		Total:     a.Total(),
		Locked:    a.Locked,
	}
}

// Snapshot is the final, externally visible state of an account.
type Snapshot struct {
	ClientID  uint16          `json:"client"`
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	Total     decimal.Decimal `json:"total"`
	Locked    bool            `json:"locked"`
}
