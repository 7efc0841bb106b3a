package interfaces

import (
	"context"

	"github.com/sheikh-saqib/payments-engine/internal/models"
)

// SnapshotWriter receives the final account snapshots of a run.
type SnapshotWriter interface {
	WriteSnapshots(ctx context.Context, snapshots []models.Snapshot) error
}
