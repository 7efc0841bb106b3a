package ledger

import "errors"

// Every rejected transaction is reported with one of these, wrapped with the tx id.
var (
	ErrAccountLocked        = errors.New("account is locked")
	ErrMissingAmount        = errors.New("amount is required")
	ErrNonPositiveAmount    = errors.New("amount must be positive")
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
	ErrInsufficientFunds    = errors.New("insufficient available funds")
	ErrInsufficientHeld     = errors.New("insufficient held funds")
	ErrUnknownTransaction   = errors.New("unknown transaction")
	ErrClientMismatch       = errors.New("transaction belongs to another client")
	ErrNotDisputed          = errors.New("transaction is not disputed")
	ErrInvalidEntryState    = errors.New("transaction can no longer be disputed")
	ErrUnknownKind          = errors.New("unknown transaction kind")
)

var reasons = []struct {
	err   error
	label string
}{
	{ErrAccountLocked, "account_locked"},
	{ErrMissingAmount, "missing_amount"},
	{ErrNonPositiveAmount, "non_positive_amount"},
	{ErrDuplicateTransaction, "duplicate_transaction"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrInsufficientHeld, "insufficient_held"},
	{ErrUnknownTransaction, "unknown_transaction"},
	{ErrClientMismatch, "client_mismatch"},
	{ErrNotDisputed, "not_disputed"},
	{ErrInvalidEntryState, "invalid_entry_state"},
	{ErrUnknownKind, "unknown_kind"},
}

// Reason returns a stable label for a drop error, suitable for metrics.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "internal"
}
