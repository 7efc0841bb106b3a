// Package dispatcher routes transactions to the goroutine that owns their
// client. Records of one client are applied in the order they were
// dispatched; records of different clients run independently.
package dispatcher

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sheikh-saqib/payments-engine/internal/models"
	"github.com/sheikh-saqib/payments-engine/internal/storage"
	"github.com/sheikh-saqib/payments-engine/internal/storage/memory"
)

var ErrClosed = errors.New("dispatcher is finalized")

// Mode selects how clients are mapped onto worker goroutines.
type Mode string

const (
	// ModeActor runs one goroutine per distinct client.
	ModeActor Mode = "actor"
	// ModePool hashes clients onto a fixed number of goroutines.
	ModePool Mode = "pool"
)

const DefaultMailboxSize = 1000

type Config struct {
	Mode        Mode
	Workers     int // pool size, ModePool only
	MailboxSize int
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeActor:
	case ModePool:
		if c.Workers <= 0 {
			return fmt.Errorf("pool mode needs a positive worker count, got %d", c.Workers)
		}
	default:
		return fmt.Errorf("unknown dispatch mode %q", c.Mode)
	}
	if c.MailboxSize <= 0 {
		return fmt.Errorf("mailbox size must be positive, got %d", c.MailboxSize)
	}
	return nil
}

// Observer is told about every transaction once a worker has handled it.
// It is called from worker goroutines and must be safe for concurrent use.
type Observer interface {
	Applied(ctx context.Context, tx models.Transaction)
	Dropped(ctx context.Context, tx models.Transaction, err error)
}

type nopObserver struct{}

func (nopObserver) Applied(context.Context, models.Transaction)        {}
func (nopObserver) Dropped(context.Context, models.Transaction, error) {}

type Option func(*Dispatcher)

func WithStoreFactory(f storage.Factory) Option {
	return func(d *Dispatcher) { d.newStore = f }
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

type Dispatcher struct {
	cfg      Config
	newStore storage.Factory
	observer Observer
	logger   *zap.Logger
	ctx      context.Context

	// sendMu is held shared by every in-flight Dispatch and exclusively
	// by Finalize, so no mailbox is closed while a send is pending.
	sendMu sync.RWMutex
	closed bool

	mapMu  sync.Mutex // protects shards
	shards map[uint64]*shard

	group errgroup.Group
}

// New returns a dispatcher. ctx is handed to the observer from worker goroutines.
func New(ctx context.Context, cfg Config, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Dispatcher{
		cfg:      cfg,
		newStore: memory.Factory,
		observer: nopObserver{},
		logger:   zap.NewNop(),
		ctx:      ctx,
		shards:   make(map[uint64]*shard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Dispatcher) shardKey(clientID uint16) uint64 {
	if d.cfg.Mode == ModeActor {
		return uint64(clientID)
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], clientID)
	return xxhash.Sum64(buf[:]) % uint64(d.cfg.Workers)
}

// getShard returns the shard for clientID, starting it on first use.
func (d *Dispatcher) getShard(clientID uint16) *shard {
	key := d.shardKey(clientID)

	d.mapMu.Lock()
	defer d.mapMu.Unlock()

	s, exists := d.shards[key]
	if !exists {
		s = newShard(key, d.cfg.MailboxSize, d.newStore, d.observer)
		d.shards[key] = s
		d.group.Go(func() error { return s.run(d.ctx) })
		d.logger.Debug("worker started", zap.Uint64("shard", key), zap.Uint16("client", clientID))
	}
	return s
}

// Dispatch queues tx on its client's worker. It blocks while that
// worker's mailbox is full and gives up when ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, tx models.Transaction) error {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	s := d.getShard(tx.ClientID)
	select {
	case s.mailbox <- tx:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finalize signals end of stream, waits for every worker to drain its
// mailbox and returns the final state of every account seen.
func (d *Dispatcher) Finalize() ([]models.Account, error) {
	d.sendMu.Lock()
	if d.closed {
		d.sendMu.Unlock()
		return nil, ErrClosed
	}
	d.closed = true
	d.sendMu.Unlock()

	d.mapMu.Lock()
	for _, s := range d.shards {
		close(s.mailbox)
	}
	d.mapMu.Unlock()

	if err := d.group.Wait(); err != nil {
		return nil, fmt.Errorf("wait for workers: %w", err)
	}

	d.mapMu.Lock()
	defer d.mapMu.Unlock()

	var accounts []models.Account
	for _, s := range d.shards {
		accounts = append(accounts, s.accounts()...)
	}
	d.logger.Info("workers finalized", zap.Int("workers", len(d.shards)), zap.Int("accounts", len(accounts)))
	return accounts, nil
}

// Workers returns the number of started worker goroutines.
func (d *Dispatcher) Workers() int {
	d.mapMu.Lock()
	defer d.mapMu.Unlock()
	return len(d.shards)
}
