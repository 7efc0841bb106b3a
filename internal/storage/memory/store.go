package memory

import (
	"fmt"

	"github.com/sheikh-saqib/payments-engine/internal/interfaces"
	"github.com/sheikh-saqib/payments-engine/internal/models"
	"github.com/sheikh-saqib/payments-engine/internal/storage"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// It is not safe for concurrent use: each store belongs to exactly one worker.
type MemoryLedgerStore struct {
	entries map[uint32]models.LedgerEntry
}

// NewMemoryLedgerStore creates and returns an empty MemoryLedgerStore.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		entries: make(map[uint32]models.LedgerEntry),
	}
}

// Factory matches storage.Factory and returns a fresh store per client.
func Factory(uint16) interfaces.LedgerStore {
	return NewMemoryLedgerStore()
}

func (m *MemoryLedgerStore) Insert(entry models.LedgerEntry) error {
	if _, exists := m.entries[entry.TxID]; exists {
		return fmt.Errorf("tx %d: %w", entry.TxID, storage.ErrEntryExists)
	}
	m.entries[entry.TxID] = entry
	return nil
}

// Get returns a copy of the entry so callers can't modify stored state.
func (m *MemoryLedgerStore) Get(txID uint32) (models.LedgerEntry, bool) {
	entry, ok := m.entries[txID]
	return entry, ok
}

func (m *MemoryLedgerStore) SetState(txID uint32, state models.EntryState) error {
	entry, ok := m.entries[txID]
	if !ok {
		return fmt.Errorf("tx %d: %w", txID, storage.ErrEntryNotFound)
	}
	entry.State = state
	m.entries[txID] = entry
	return nil
}

func (m *MemoryLedgerStore) Delete(txID uint32) {
	delete(m.entries, txID)
}

func (m *MemoryLedgerStore) Len() int {
	return len(m.entries)
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
