package snapshot

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/payments-engine/internal/interfaces"
	"github.com/sheikh-saqib/payments-engine/internal/models"
)

// Collect turns final account states into snapshots ordered by client id.
func Collect(accounts []models.Account) []models.Snapshot {
	snapshots := make([]models.Snapshot, 0, len(accounts))
	for _, acc := range accounts {
		snapshots = append(snapshots, acc.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ClientID < snapshots[j].ClientID
	})
	return snapshots
}

// Collector hands the snapshots of a finished run to its writers in order.
type Collector struct {
	writers []interfaces.SnapshotWriter
	logger  *zap.Logger
}

func NewCollector(logger *zap.Logger, writers ...interfaces.SnapshotWriter) *Collector {
	return &Collector{
		writers: writers,
		logger:  logger,
	}
}

func (c *Collector) Emit(ctx context.Context, accounts []models.Account) ([]models.Snapshot, error) {
	snapshots := Collect(accounts)

	locked := 0
	for _, s := range snapshots {
		if s.Locked {
			locked++
		}
	}
	c.logger.Info("emitting account snapshots",
		zap.Int("accounts", len(snapshots)),
		zap.Int("locked", locked),
		zap.Int("writers", len(c.writers)),
	)

	for i, w := range c.writers {
		if err := w.WriteSnapshots(ctx, snapshots); err != nil {
			return snapshots, fmt.Errorf("snapshot writer %d: %w", i, err)
		}
	}
	return snapshots, nil
}
