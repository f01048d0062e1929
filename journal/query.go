package journal

import (
	"context"
	"time"

	"github.com/rustyeddy/ledger/ledger"
)

// ListClosedBetween returns signals whose close_date is within [start, end).
func (j *SQLite) ListClosedBetween(ctx context.Context, start, end time.Time) ([]ledger.Signal, error) {
	return querySignals(ctx, j.db, `
		SELECT `+signalCols+`
		FROM signals
		WHERE close_date >= ? AND close_date < ?
		ORDER BY close_date ASC, id ASC`, start.UTC(), end.UTC())
}

// RealizedBetween sums realized profit of CLOSED signals closed within
// [start, end). Sums are done in Go on decimals; SQLite would add TEXT
// columns as floats.
func (j *SQLite) RealizedBetween(ctx context.Context, start, end time.Time) (Summary, error) {
	sigs, err := j.ListClosedBetween(ctx, start, end)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(sigs), nil
}
