package dispatcher

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/payments-engine/internal/interfaces"
	"github.com/sheikh-saqib/payments-engine/internal/models"
	"github.com/sheikh-saqib/payments-engine/internal/storage/memory"
)

type recordingObserver struct {
	mu      sync.Mutex
	seen    map[uint16][]uint32
	dropped int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{seen: make(map[uint16][]uint32)}
}

func (o *recordingObserver) Applied(_ context.Context, tx models.Transaction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen[tx.ClientID] = append(o.seen[tx.ClientID], tx.TxID)
}

func (o *recordingObserver) Dropped(_ context.Context, tx models.Transaction, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen[tx.ClientID] = append(o.seen[tx.ClientID], tx.TxID)
	o.dropped++
}

type gateObserver struct {
	gate chan struct{}
}

func (o *gateObserver) Applied(context.Context, models.Transaction)        { <-o.gate }
func (o *gateObserver) Dropped(context.Context, models.Transaction, error) { <-o.gate }

func deposit(client uint16, tx uint32, amount int64) models.Transaction {
	return models.Transaction{
		Kind:     models.KindDeposit,
		ClientID: client,
		TxID:     tx,
		Amount:   decimal.NewNullDecimal(decimal.NewFromInt(amount)),
	}
}

var modes = []Config{
	{Mode: ModeActor, MailboxSize: 4},
	{Mode: ModePool, Workers: 3, MailboxSize: 4},
}

func byClient(accounts []models.Account) map[uint16]models.Account {
	out := make(map[uint16]models.Account, len(accounts))
	for _, a := range accounts {
		out[a.ClientID] = a
	}
	return out
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"actor", Config{Mode: ModeActor, MailboxSize: 1}, false},
		{"pool", Config{Mode: ModePool, Workers: 2, MailboxSize: 1}, false},
		{"pool without workers", Config{Mode: ModePool, MailboxSize: 1}, true},
		{"no mailbox", Config{Mode: ModeActor}, true},
		{"unknown mode", Config{Mode: "fanout", MailboxSize: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDispatcher_PerClientOrder(t *testing.T) {
	for _, cfg := range modes {
		t.Run(string(cfg.Mode), func(t *testing.T) {
			obs := newRecordingObserver()
			d, err := New(context.Background(), cfg, WithObserver(obs))
			require.NoError(t, err)

			const clients, perClient = 20, 50
			tx := uint32(0)
			for i := 0; i < perClient; i++ {
				for c := uint16(1); c <= clients; c++ {
					tx++
					require.NoError(t, d.Dispatch(context.Background(), deposit(c, tx, 1)))
				}
			}

			accounts, err := d.Finalize()
			require.NoError(t, err)
			require.Len(t, accounts, clients)

			for c := uint16(1); c <= clients; c++ {
				seen := obs.seen[c]
				require.Len(t, seen, perClient)
				assert.Truef(t, sort.SliceIsSorted(seen, func(i, j int) bool { return seen[i] < seen[j] }),
					"client %d saw records out of order: %v", c, seen)
			}
			for _, acc := range accounts {
				assert.True(t, acc.Available.Equal(decimal.NewFromInt(perClient)))
			}
			assert.Zero(t, obs.dropped)
		})
	}
}

func TestDispatcher_InterleavedClientsAreIndependent(t *testing.T) {
	for _, cfg := range modes {
		t.Run(string(cfg.Mode), func(t *testing.T) {
			d, err := New(context.Background(), cfg)
			require.NoError(t, err)

			stream := []models.Transaction{
				deposit(1, 1, 10),
				deposit(2, 2, 3),
				{Kind: models.KindWithdrawal, ClientID: 1, TxID: 3, Amount: decimal.NewNullDecimal(decimal.NewFromInt(4))},
				{Kind: models.KindWithdrawal, ClientID: 2, TxID: 4, Amount: decimal.NewNullDecimal(decimal.NewFromInt(5))},
			}
			for _, tx := range stream {
				require.NoError(t, d.Dispatch(context.Background(), tx))
			}

			accounts, err := d.Finalize()
			require.NoError(t, err)
			got := byClient(accounts)
			assert.True(t, got[1].Available.Equal(decimal.NewFromInt(6)))
			assert.True(t, got[2].Available.Equal(decimal.NewFromInt(3)))
		})
	}
}

func TestDispatcher_ConcurrentProducers(t *testing.T) {
	obs := newRecordingObserver()
	d, err := New(context.Background(), Config{Mode: ModePool, Workers: 4, MailboxSize: 2}, WithObserver(obs))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for c := uint16(1); c <= 8; c++ {
		wg.Add(1)
		go func(client uint16) {
			defer wg.Done()
			for i := uint32(1); i <= 100; i++ {
				assert.NoError(t, d.Dispatch(context.Background(), deposit(client, uint32(client)*1000+i, 1)))
			}
		}(c)
	}
	wg.Wait()

	accounts, err := d.Finalize()
	require.NoError(t, err)
	require.Len(t, accounts, 8)
	for c, seen := range obs.seen {
		require.Len(t, seen, 100)
		assert.Truef(t, sort.SliceIsSorted(seen, func(i, j int) bool { return seen[i] < seen[j] }), "client %d out of order", c)
	}
	assert.LessOrEqual(t, d.Workers(), 4)
}

func TestDispatcher_PoolIsSticky(t *testing.T) {
	d, err := New(context.Background(), Config{Mode: ModePool, Workers: 5, MailboxSize: 1})
	require.NoError(t, err)

	for c := uint16(0); c < 200; c++ {
		key := d.shardKey(c)
		assert.Less(t, key, uint64(5))
		assert.Equal(t, key, d.shardKey(c))
	}
}

func TestDispatcher_ActorModeStartsWorkerPerClient(t *testing.T) {
	d, err := New(context.Background(), Config{Mode: ModeActor, MailboxSize: 1})
	require.NoError(t, err)

	for c := uint16(1); c <= 5; c++ {
		require.NoError(t, d.Dispatch(context.Background(), deposit(c, uint32(c), 1)))
		require.NoError(t, d.Dispatch(context.Background(), deposit(c, uint32(c)+100, 1)))
	}
	assert.Equal(t, 5, d.Workers())

	_, err = d.Finalize()
	require.NoError(t, err)
}

func TestDispatcher_Backpressure(t *testing.T) {
	obs := &gateObserver{gate: make(chan struct{})}
	d, err := New(context.Background(), Config{Mode: ModeActor, MailboxSize: 1}, WithObserver(obs))
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), deposit(1, 1, 1)))
	require.NoError(t, d.Dispatch(context.Background(), deposit(1, 2, 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = d.Dispatch(ctx, deposit(1, 3, 1))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(obs.gate)
	accounts, err := d.Finalize()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].Available.Equal(decimal.NewFromInt(2)))
}

func TestDispatcher_FinalizeClosesDispatch(t *testing.T) {
	d, err := New(context.Background(), Config{Mode: ModeActor, MailboxSize: 1})
	require.NoError(t, err)

	accounts, err := d.Finalize()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	require.ErrorIs(t, d.Dispatch(context.Background(), deposit(1, 1, 1)), ErrClosed)
	_, err = d.Finalize()
	require.ErrorIs(t, err, ErrClosed)
}

func TestDispatcher_DropsAreObserved(t *testing.T) {
	obs := newRecordingObserver()
	d, err := New(context.Background(), Config{Mode: ModeActor, MailboxSize: 8}, WithObserver(obs))
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), models.Transaction{Kind: models.KindDispute, ClientID: 4, TxID: 1}))

	accounts, err := d.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 1, obs.dropped)
	require.Len(t, accounts, 1)
	assert.Equal(t, uint16(4), accounts[0].ClientID, "a dropped record still creates the account")
}

func TestDispatcher_UsesStoreFactory(t *testing.T) {
	var mu sync.Mutex
	created := map[uint16]int{}
	factory := func(clientID uint16) interfaces.LedgerStore {
		mu.Lock()
		created[clientID]++
		mu.Unlock()
		return memory.NewMemoryLedgerStore()
	}

	d, err := New(context.Background(), Config{Mode: ModePool, Workers: 2, MailboxSize: 2}, WithStoreFactory(factory))
	require.NoError(t, err)
	for c := uint16(1); c <= 3; c++ {
		require.NoError(t, d.Dispatch(context.Background(), deposit(c, uint32(c), 1)))
		require.NoError(t, d.Dispatch(context.Background(), deposit(c, uint32(c)+10, 1)))
	}
	_, err = d.Finalize()
	require.NoError(t, err)

	assert.Equal(t, map[uint16]int{1: 1, 2: 1, 3: 1}, created)
}
