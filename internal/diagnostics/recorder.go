// Package diagnostics reports what the engine did with each record without
// touching the snapshot output: counters, sampled log lines and, optionally,
// one event per dropped transaction.
package diagnostics

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sheikh-saqib/payments-engine/internal/interfaces"
	"github.com/sheikh-saqib/payments-engine/internal/ledger"
	"github.com/sheikh-saqib/payments-engine/internal/models"
	"github.com/sheikh-saqib/payments-engine/internal/models/events"
)

type Options struct {
	RunID string
	// Publisher receives a TransactionDropped event per drop. Optional.
	Publisher interfaces.EventPublisher
	// LogRate and LogBurst bound drop warnings per second. Zero disables the limit.
	LogRate  float64
	LogBurst int
}

// Recorder is safe for concurrent use by all workers.
type Recorder struct {
	logger    *zap.Logger
	metrics   *Metrics
	publisher interfaces.EventPublisher
	limiter   *rate.Limiter
	runID     string
	now       func() time.Time
}

func NewRecorder(logger *zap.Logger, metrics *Metrics, opts Options) *Recorder {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.LogRate > 0 {
		burst := opts.LogBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.LogRate), burst)
	}
	return &Recorder{
		logger:    logger,
		metrics:   metrics,
		publisher: opts.Publisher,
		limiter:   limiter,
		runID:     opts.RunID,
		now:       time.Now,
	}
}

func (r *Recorder) Applied(_ context.Context, tx models.Transaction) {
	r.metrics.TransactionsApplied.WithLabelValues(tx.Kind.String()).Inc()
}

func (r *Recorder) Dropped(ctx context.Context, tx models.Transaction, err error) {
	reason := ledger.Reason(err)
	r.metrics.TransactionsDropped.WithLabelValues(tx.Kind.String(), reason).Inc()

	if r.limiter.Allow() {
		r.logger.Warn("transaction dropped",
			zap.Uint16("client", tx.ClientID),
			zap.Uint32("tx", tx.TxID),
			zap.String("type", tx.Kind.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}

	if r.publisher == nil {
		return
	}
	event := events.TransactionDropped{
		EventID:    uuid.New().String(),
		RunID:      r.runID,
		ClientID:   tx.ClientID,
		TxID:       tx.TxID,
		Kind:       tx.Kind.String(),
		Reason:     reason,
		Detail:     err.Error(),
		OccurredAt: r.now().UTC(),
	}
	if tx.Amount.Valid {
		amount := tx.Amount.Decimal
		event.Amount = &amount
	}
	if pubErr := r.publisher.Publish(ctx, strconv.Itoa(int(tx.ClientID)), event); pubErr != nil {
		r.metrics.EventPublishErrors.Inc()
		r.logger.Error("failed to publish drop event", zap.String("event_id", event.EventID), zap.Error(pubErr))
	}
}

// Malformed records an input row that never reached an account.
func (r *Recorder) Malformed(_ context.Context, err error) {
	r.metrics.RecordsMalformed.Inc()
	if r.limiter.Allow() {
		r.logger.Warn("malformed record skipped", zap.Error(err))
	}
}
