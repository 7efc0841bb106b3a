package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/sheikh-saqib/payments-engine/internal/interfaces"
	"github.com/sheikh-saqib/payments-engine/internal/models"
)

const DefaultPrecision = 4

var header = []string{"client", "available", "held", "total", "locked"}

// Writer prints snapshots as CSV with a fixed number of decimal places.
type Writer struct {
	out       io.Writer
	precision int32
}

func NewWriter(out io.Writer, precision int32) *Writer {
	return &Writer{out: out, precision: precision}
}

func (w *Writer) WriteSnapshots(_ context.Context, snapshots []models.Snapshot) error {
	cw := csv.NewWriter(w.out)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range snapshots {
		row := []string{
			strconv.Itoa(int(s.ClientID)),
			s.Available.StringFixed(w.precision),
			s.Held.StringFixed(w.precision),
			s.Total.StringFixed(w.precision),
			strconv.FormatBool(s.Locked),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write client %d: %w", s.ClientID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var _ interfaces.SnapshotWriter = (*Writer)(nil)
