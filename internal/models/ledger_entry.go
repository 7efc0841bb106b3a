package models

import (
	"github.com/shopspring/decimal"
)

// EntryState is the dispute state of a posted deposit.
type EntryState uint8

const (
	EntryPosted EntryState = iota
	EntryDisputed
	EntryResolved
	EntryChargedBack
)

func (s EntryState) String() string {
	switch s {
	case EntryPosted:
		return "posted"
	case EntryDisputed:
		return "disputed"
	case EntryResolved:
		return "resolved"
	case EntryChargedBack:
		return "charged_back"
	default:
		return "unknown"
	}
}

// Settled reports whether the entry has left its dispute.
func (s EntryState) Settled() bool {
	return s == EntryResolved || s == EntryChargedBack
}

// LedgerEntry represents one successfully posted deposit of a client.
type LedgerEntry struct {
	TxID     uint32          // id of the deposit
	ClientID uint16          // owner of the deposit
	Amount   decimal.Decimal // deposited amount, always positive
	State    EntryState
}
