package dispatcher

import (
	"context"
	"fmt"

	"github.com/sheikh-saqib/payments-engine/internal/ledger"
	"github.com/sheikh-saqib/payments-engine/internal/models"
	"github.com/sheikh-saqib/payments-engine/internal/storage"
)

// shard is one worker goroutine. It owns every Processor routed to it;
// nothing else touches them until run has returned.
type shard struct {
	key        uint64
	mailbox    chan models.Transaction
	processors map[uint16]*ledger.Processor
	order      []uint16
	newStore   storage.Factory
	observer   Observer
}

func newShard(key uint64, mailboxSize int, newStore storage.Factory, observer Observer) *shard {
	return &shard{
		key:        key,
		mailbox:    make(chan models.Transaction, mailboxSize),
		processors: make(map[uint16]*ledger.Processor),
		newStore:   newStore,
		observer:   observer,
	}
}

func (s *shard) processor(clientID uint16) *ledger.Processor {
	p, ok := s.processors[clientID]
	if !ok {
		p = ledger.NewProcessor(clientID, s.newStore(clientID))
		s.processors[clientID] = p
		s.order = append(s.order, clientID)
	}
	return p
}

func (s *shard) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d panicked: %v", s.key, r)
			// keep draining so Dispatch never blocks on a dead worker
			for range s.mailbox {
			}
		}
	}()

	for tx := range s.mailbox {
		if applyErr := s.processor(tx.ClientID).Apply(tx); applyErr != nil {
			s.observer.Dropped(ctx, tx, applyErr)
			continue
		}
		s.observer.Applied(ctx, tx)
	}
	return nil
}

func (s *shard) accounts() []models.Account {
	out := make([]models.Account, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.processors[id].Account())
	}
	return out
}
