package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/sheikh-saqib/payments-engine/internal/interfaces"
	"github.com/sheikh-saqib/payments-engine/internal/models"
)

const DefaultTable = "account_snapshots"

// SnapshotStore persists the final account snapshots of a run.
type SnapshotStore struct {
	db    *sql.DB
	runID string
	table string
	now   func() time.Time
}

// Open connects to Postgres through lib/pq and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewSnapshotStore(db *sql.DB, runID string) *SnapshotStore {
	return &SnapshotStore{
		db:    db,
		runID: runID,
		table: pq.QuoteIdentifier(DefaultTable),
		now:   time.Now,
	}
}

func (p *SnapshotStore) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + p.table + ` (
	run_id     TEXT           NOT NULL,
	client_id  INTEGER        NOT NULL,
	available  NUMERIC        NOT NULL,
	held       NUMERIC        NOT NULL,
	total      NUMERIC        NOT NULL,
	locked     BOOLEAN        NOT NULL,
	created_at TIMESTAMPTZ    NOT NULL,
	PRIMARY KEY (run_id, client_id)
)`
	_, err := p.db.ExecContext(ctx, query)
	return err
}

// WriteSnapshots upserts every snapshot of the run in one transaction.
func (p *SnapshotStore) WriteSnapshots(ctx context.Context, snapshots []models.Snapshot) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	query := `INSERT INTO ` + p.table + ` (run_id, client_id, available, held, total, locked, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (run_id, client_id) DO UPDATE
	SET available = EXCLUDED.available, held = EXCLUDED.held, total = EXCLUDED.total,
		locked = EXCLUDED.locked, created_at = EXCLUDED.created_at`

	stmt, err := dbTx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	createdAt := p.now().UTC()
	for _, s := range snapshots {
		_, err = stmt.ExecContext(ctx, p.runID, int(s.ClientID), s.Available, s.Held, s.Total, s.Locked, createdAt)
		if err != nil {
			return fmt.Errorf("client %d: %w", s.ClientID, err)
		}
	}
	return dbTx.Commit()
}

// GetSnapshots returns the stored snapshots of the run ordered by client.
func (p *SnapshotStore) GetSnapshots(ctx context.Context) ([]models.Snapshot, error) {
	query := `SELECT client_id, available, held, total, locked FROM ` + p.table + `
	WHERE run_id = $1 ORDER BY client_id`

	rows, err := p.db.QueryContext(ctx, query, p.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		var client int
		if err := rows.Scan(&client, &s.Available, &s.Held, &s.Total, &s.Locked); err != nil {
			return nil, err
		}
		s.ClientID = uint16(client)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

var _ interfaces.SnapshotWriter = (*SnapshotStore)(nil)
