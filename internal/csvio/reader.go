// Package csvio reads transaction records from and writes account
// snapshots to CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/payments-engine/internal/models"
)

var ErrInvalidHeader = errors.New("invalid csv header")

// RecordError describes a row that could not be parsed. It matches
// models.ErrMalformedRecord with errors.Is.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{models.ErrMalformedRecord, e.Err}
}

type columns struct {
	kind, client, tx, amount int
}

// Reader yields one Transaction per CSV row. The header row names the
// columns type, client, tx and optionally amount, in any order.
type Reader struct {
	csv  *csv.Reader
	cols *columns
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{csv: cr}
}

func (r *Reader) readHeader() error {
	header, err := r.csv.Read()
	if err == io.EOF {
		return fmt.Errorf("%w: empty input", ErrInvalidHeader)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	cols := columns{kind: -1, client: -1, tx: -1, amount: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "type":
			cols.kind = i
		case "client":
			cols.client = i
		case "tx":
			cols.tx = i
		case "amount":
			cols.amount = i
		}
	}
	if cols.kind < 0 || cols.client < 0 || cols.tx < 0 {
		return fmt.Errorf("%w: need type, client and tx columns, got %v", ErrInvalidHeader, header)
	}
	r.cols = &cols
	return nil
}

// Next returns the next transaction, io.EOF at the end of input, or a
// *RecordError for a bad row. Reading may continue after a RecordError.
func (r *Reader) Next() (models.Transaction, error) {
	if r.cols == nil {
		if err := r.readHeader(); err != nil {
			return models.Transaction{}, err
		}
	}

	row, err := r.csv.Read()
	if err == io.EOF {
		return models.Transaction{}, io.EOF
	}
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return models.Transaction{}, &RecordError{Line: parseErr.StartLine, Err: err}
		}
		return models.Transaction{}, err
	}

	tx, err := r.parse(row)
	if err != nil {
		line, _ := r.csv.FieldPos(0)
		return models.Transaction{}, &RecordError{Line: line, Err: err}
	}
	return tx, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (r *Reader) parse(row []string) (models.Transaction, error) {
	kind, err := models.ParseKind(field(row, r.cols.kind))
	if err != nil {
		return models.Transaction{}, err
	}
	client, err := strconv.ParseUint(field(row, r.cols.client), 10, 16)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("client: %w", err)
	}
	txID, err := strconv.ParseUint(field(row, r.cols.tx), 10, 32)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("tx: %w", err)
	}

	tx := models.Transaction{
		Kind:     kind,
		ClientID: uint16(client),
		TxID:     uint32(txID),
	}
	if raw := field(row, r.cols.amount); raw != "" && kind.HasAmount() {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return models.Transaction{}, fmt.Errorf("amount: %w", err)
		}
		tx.Amount = decimal.NewNullDecimal(amount)
	}
	return tx, nil
}
