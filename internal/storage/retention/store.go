// Package retention bounds ledger growth by forgetting old settled deposits.
//
// Only entries that are Resolved or ChargedBack are candidates. Once more
// than the configured number of settled entries is tracked, the least
// recently settled one is deleted from the wrapped store and any later
// reference to it behaves like an unknown transaction.
package retention

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sheikh-saqib/payments-engine/internal/interfaces"
	"github.com/sheikh-saqib/payments-engine/internal/models"
	"github.com/sheikh-saqib/payments-engine/internal/storage"
)

var ErrInvalidLimit = errors.New("retention limit must be positive")

type Store struct {
	inner   interfaces.LedgerStore
	settled *lru.Cache[uint32, struct{}]
	evicted int
}

func New(inner interfaces.LedgerStore, maxSettled int) (*Store, error) {
	if maxSettled <= 0 {
		return nil, ErrInvalidLimit
	}
	s := &Store{inner: inner}
	cache, err := lru.NewWithEvict[uint32, struct{}](maxSettled, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.settled = cache
	return s, nil
}

// Factory wraps every store built by next with a retention limit.
func Factory(next storage.Factory, maxSettled int) (storage.Factory, error) {
	if maxSettled <= 0 {
		return nil, ErrInvalidLimit
	}
	return func(clientID uint16) interfaces.LedgerStore {
		s, _ := New(next(clientID), maxSettled)
		return s
	}, nil
}

// onEvict also runs on explicit Remove, so entries that went back to
// Disputed are left alone.
func (s *Store) onEvict(txID uint32, _ struct{}) {
	entry, ok := s.inner.Get(txID)
	if !ok || !entry.State.Settled() {
		return
	}
	s.inner.Delete(txID)
	s.evicted++
}

func (s *Store) Insert(entry models.LedgerEntry) error {
	return s.inner.Insert(entry)
}

func (s *Store) Get(txID uint32) (models.LedgerEntry, bool) {
	return s.inner.Get(txID)
}

func (s *Store) SetState(txID uint32, state models.EntryState) error {
	if err := s.inner.SetState(txID, state); err != nil {
		return err
	}
	if state.Settled() {
		s.settled.Add(txID, struct{}{})
	} else {
		s.settled.Remove(txID)
	}
	return nil
}

func (s *Store) Delete(txID uint32) {
	s.inner.Delete(txID)
	s.settled.Remove(txID)
}

func (s *Store) Len() int {
	return s.inner.Len()
}

// Evicted returns how many settled entries were dropped so far.
func (s *Store) Evicted() int {
	return s.evicted
}

var _ interfaces.LedgerStore = (*Store)(nil)
