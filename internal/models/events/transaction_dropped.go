package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionDropped is published for every record the engine refused to apply.
type TransactionDropped struct {
	EventID    string           `json:"event_id"`
	RunID      string           `json:"run_id"`
	ClientID   uint16           `json:"client"`
	TxID       uint32           `json:"tx"`
	Kind       string           `json:"type"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Reason     string           `json:"reason"`
	Detail     string           `json:"detail"`
	OccurredAt time.Time        `json:"occurred_at"`
}
