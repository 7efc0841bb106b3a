package storage

import (
	"errors"

	"github.com/sheikh-saqib/payments-engine/internal/interfaces"
)

var (
	ErrEntryExists   = errors.New("ledger entry already exists")
	ErrEntryNotFound = errors.New("ledger entry not found")
)

// Factory builds the ledger store of one client.
type Factory func(clientID uint16) interfaces.LedgerStore
