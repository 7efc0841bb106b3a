// Package engine runs one stream of transaction records through the
// dispatcher and hands the resulting account snapshots to the collector.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/payments-engine/internal/diagnostics"
	"github.com/sheikh-saqib/payments-engine/internal/dispatcher"
	"github.com/sheikh-saqib/payments-engine/internal/models"
	"github.com/sheikh-saqib/payments-engine/internal/snapshot"
	"github.com/sheikh-saqib/payments-engine/internal/storage"
	"github.com/sheikh-saqib/payments-engine/internal/storage/memory"
	"github.com/sheikh-saqib/payments-engine/internal/storage/retention"
)

// Source yields transactions until io.EOF. Errors matching
// models.ErrMalformedRecord skip one record; any other error ends the run.
type Source interface {
	Next() (models.Transaction, error)
}

type Observer interface {
	dispatcher.Observer
	Malformed(ctx context.Context, err error)
}

type nopObserver struct{}

func (nopObserver) Applied(context.Context, models.Transaction)        {}
func (nopObserver) Dropped(context.Context, models.Transaction, error) {}
func (nopObserver) Malformed(context.Context, error)                   {}

type Options struct {
	Dispatcher dispatcher.Config
	// RetainSettled bounds the settled deposits kept per client. Zero keeps all.
	RetainSettled int
	Observer      Observer
	Collector     *snapshot.Collector
	Logger        *zap.Logger
}

type Engine struct {
	cfg       dispatcher.Config
	newStore  storage.Factory
	observer  Observer
	collector *snapshot.Collector
	logger    *zap.Logger
}

// Result summarizes a finished run.
type Result struct {
	Records   int // records handed to the dispatcher
	Malformed int
	Snapshots []models.Snapshot
}

func New(opts Options) (*Engine, error) {
	if err := opts.Dispatcher.Validate(); err != nil {
		return nil, fmt.Errorf("dispatcher config: %w", err)
	}
	if opts.Collector == nil {
		return nil, errors.New("engine needs a snapshot collector")
	}

	var newStore storage.Factory = memory.Factory
	if opts.RetainSettled > 0 {
		f, err := retention.Factory(newStore, opts.RetainSettled)
		if err != nil {
			return nil, fmt.Errorf("ledger retention: %w", err)
		}
		newStore = f
	}

	e := &Engine{
		cfg:       opts.Dispatcher,
		newStore:  newStore,
		observer:  opts.Observer,
		collector: opts.Collector,
		logger:    opts.Logger,
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e, nil
}

// Run consumes src to the end, then finalizes every account and emits
// their snapshots. The dispatcher is always finalized, even when reading fails.
func (e *Engine) Run(ctx context.Context, src Source) (Result, error) {
	started := time.Now()

	d, err := dispatcher.New(ctx, e.cfg,
		dispatcher.WithStoreFactory(e.newStore),
		dispatcher.WithObserver(e.observer),
		dispatcher.WithLogger(e.logger),
	)
	if err != nil {
		return Result{}, err
	}

	var res Result
	feedErr := e.feed(ctx, d, src, &res)

	accounts, err := d.Finalize()
	if feedErr != nil {
		return res, feedErr
	}
	if err != nil {
		return res, fmt.Errorf("finalize accounts: %w", err)
	}

	res.Snapshots, err = e.collector.Emit(ctx, accounts)
	if err != nil {
		return res, fmt.Errorf("emit snapshots: %w", err)
	}

	e.logger.Info("run complete",
		zap.String("mode", string(e.cfg.Mode)),
		zap.Int("records", res.Records),
		zap.Int("malformed", res.Malformed),
		zap.Int("accounts", len(res.Snapshots)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

func (e *Engine) feed(ctx context.Context, d *dispatcher.Dispatcher, src Source, res *Result) error {
	for {
		tx, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, models.ErrMalformedRecord) {
			res.Malformed++
			e.observer.Malformed(ctx, err)
			continue
		}
		if err != nil {
			return fmt.Errorf("read transactions: %w", err)
		}

		if err := d.Dispatch(ctx, tx); err != nil {
			return fmt.Errorf("dispatch tx %d: %w", tx.TxID, err)
		}
		res.Records++
	}
}

var _ Observer = (*diagnostics.Recorder)(nil)
