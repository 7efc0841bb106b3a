package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedRecord marks an input record that could not be turned into a Transaction.
var ErrMalformedRecord = errors.New("malformed transaction record")

// Kind is the type of a transaction record.
type Kind uint8

const (
	KindDeposit Kind = iota + 1
	KindWithdrawal
	KindDispute
	KindResolve
	KindChargeback
)

func (k Kind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdrawal:
		return "withdrawal"
	case KindDispute:
		return "dispute"
	case KindResolve:
		return "resolve"
	case KindChargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}

// HasAmount reports whether records of this kind carry an amount.
func (k Kind) HasAmount() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// ParseKind maps a record type name to a Kind, ignoring case and surrounding space.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit":
		return KindDeposit, nil
	case "withdrawal":
		return KindWithdrawal, nil
	case "dispute":
		return KindDispute, nil
	case "resolve":
		return KindResolve, nil
	case "chargeback":
		return KindChargeback, nil
	}
	return 0, fmt.Errorf("unknown transaction type %q", s)
}

// Transaction is one record of the input stream.
// Amount is only meaningful for deposits and withdrawals.
type Transaction struct {
	Kind     Kind
	ClientID uint16
	TxID     uint32
	Amount   decimal.NullDecimal
}
