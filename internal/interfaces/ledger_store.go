package interfaces

import (
	"github.com/sheikh-saqib/payments-engine/internal/models"
)

// LedgerStore keeps the posted deposits of a single client, keyed by tx id.
// A store is owned by one worker and is never shared.
type LedgerStore interface {
	Insert(entry models.LedgerEntry) error
	Get(txID uint32) (models.LedgerEntry, bool)
	SetState(txID uint32, state models.EntryState) error
	Delete(txID uint32)
	Len() int
}
