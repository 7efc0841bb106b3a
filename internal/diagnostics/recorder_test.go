package diagnostics

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sheikh-saqib/payments-engine/internal/ledger"
	"github.com/sheikh-saqib/payments-engine/internal/models"
	"github.com/sheikh-saqib/payments-engine/internal/models/events"
)

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	events []any
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, key string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.events = append(f.events, event)
	return f.err
}

func newTestRecorder(t *testing.T, opts Options) (*Recorder, *Metrics, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewRecorder(zap.New(core), metrics, opts), metrics, logs
}

var withdrawal = models.Transaction{
	Kind:     models.KindWithdrawal,
	ClientID: 3,
	TxID:     9,
	Amount:   decimal.NewNullDecimal(decimal.RequireFromString("1.5")),
}

func TestRecorder_Applied(t *testing.T) {
	rec, metrics, _ := newTestRecorder(t, Options{})

	rec.Applied(context.Background(), withdrawal)
	rec.Applied(context.Background(), withdrawal)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.TransactionsApplied.WithLabelValues("withdrawal")))
}

func TestRecorder_DroppedCountsAndLogs(t *testing.T) {
	rec, metrics, logs := newTestRecorder(t, Options{})
	err := fmt.Errorf("withdrawal tx 9: %w", ledger.ErrInsufficientFunds)

	rec.Dropped(context.Background(), withdrawal, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransactionsDropped.WithLabelValues("withdrawal", "insufficient_funds")))
	entries := logs.FilterMessage("transaction dropped").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "insufficient_funds", entries[0].ContextMap()["reason"])
}

func TestRecorder_DroppedPublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	rec, _, _ := newTestRecorder(t, Options{RunID: "run-1", Publisher: pub})

	rec.Dropped(context.Background(), withdrawal, ledger.ErrAccountLocked)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "3", pub.keys[0])
	event, ok := pub.events[0].(events.TransactionDropped)
	require.True(t, ok)
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, "account_locked", event.Reason)
	assert.Equal(t, uint32(9), event.TxID)
	require.NotNil(t, event.Amount)
	assert.True(t, event.Amount.Equal(decimal.RequireFromString("1.5")))
	assert.NotEmpty(t, event.EventID)
}

func TestRecorder_PublishFailureIsCounted(t *testing.T) {
	pub := &fakePublisher{err: assert.AnError}
	rec, metrics, logs := newTestRecorder(t, Options{Publisher: pub})

	rec.Dropped(context.Background(), withdrawal, ledger.ErrAccountLocked)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventPublishErrors))
	assert.Equal(t, 1, logs.FilterMessage("failed to publish drop event").Len())
}

func TestRecorder_LogsAreRateLimited(t *testing.T) {
	rec, metrics, logs := newTestRecorder(t, Options{LogRate: 0.001, LogBurst: 2})

	for i := 0; i < 10; i++ {
		rec.Dropped(context.Background(), withdrawal, ledger.ErrInsufficientFunds)
	}

	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.TransactionsDropped.WithLabelValues("withdrawal", "insufficient_funds")))
	assert.Equal(t, 2, logs.FilterMessage("transaction dropped").Len())
}

func TestRecorder_Malformed(t *testing.T) {
	rec, metrics, logs := newTestRecorder(t, Options{})

	rec.Malformed(context.Background(), models.ErrMalformedRecord)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordsMalformed))
	assert.Equal(t, 1, logs.FilterMessage("malformed record skipped").Len())
}
