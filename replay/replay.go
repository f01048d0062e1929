package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/ledger/ledger"
)

// Applier is the part of the ledger a replay drives.
type Applier interface {
	ApplySignal(ctx context.Context, d ledger.Draft) (ledger.Signal, error)
}

// Options controls how replay behaves.
type Options struct {
	// SkipRejected logs and skips rows the ledger rejects (validation or
	// position errors) instead of stopping. Store failures always stop.
	SkipRejected bool

	Logger *zap.Logger
}

// Result counts what a replay did.
type Result struct {
	Rows     int
	Applied  int
	Rejected int
	Signals  []ledger.Signal
}

// CSV applies the signal drafts in csvPath, in file order.
//
// Columns:
//
//	time,symbol,type,price,quantity[,reason]
//
// A header row starting with "time" is skipped. Times are RFC3339,
// "2006-01-02 15:04:05" or "2006-01-02" (UTC).
func CSV(ctx context.Context, csvPath string, l Applier, opts Options) (Result, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	return Read(ctx, f, l, opts)
}

// Read is CSV over any reader.
func Read(ctx context.Context, in io.Reader, l Applier, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.Comment = '#'

	var (
		res  Result
		line int
	)
	for {
		row, err := r.Read()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Rows++
		sig, err := applyRow(ctx, l, row)
		if err != nil {
			if opts.SkipRejected && rejected(err) {
				res.Rejected++
				log.Warn("replay row rejected", zap.Int("line", line), zap.Error(err))
				continue
			}
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		res.Applied++
		res.Signals = append(res.Signals, sig)
	}
}

func applyRow(ctx context.Context, l Applier, row []string) (ledger.Signal, error) {
	d, err := ParseRow(row)
	if err != nil {
		return ledger.Signal{}, err
	}
	return l.ApplySignal(ctx, d)
}

func rejected(err error) bool {
	return errors.Is(err, ledger.ErrValidation) || errors.Is(err, ledger.ErrInsufficientPosition)
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// ParseRow turns one CSV row into a draft. Malformed rows are validation
// errors, the same kind the ledger returns for a bad draft.
func ParseRow(row []string) (ledger.Draft, error) {
	if len(row) < 5 {
		return ledger.Draft{}, invalidRow("bad row (need time,symbol,type,price,quantity): %v", row)
	}
	if len(row) > 6 {
		return ledger.Draft{}, invalidRow("too many columns (expected <=6): %v", row)
	}
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}

	t, err := parseTime(row[0])
	if err != nil {
		return ledger.Draft{}, invalidRow("%v", err)
	}
	typ, err := ledger.ParseSignalType(row[2])
	if err != nil {
		return ledger.Draft{}, err
	}
	price, err := decimal.NewFromString(row[3])
	if err != nil {
		return ledger.Draft{}, invalidRow("bad price %q: %v", row[3], err)
	}
	qty, err := decimal.NewFromString(row[4])
	if err != nil {
		return ledger.Draft{}, invalidRow("bad quantity %q: %v", row[4], err)
	}

	d := ledger.Draft{
		Time:     t,
		Symbol:   row[1],
		Type:     typ,
		Price:    price,
		Quantity: qty,
	}
	if len(row) == 6 {
		d.Reason = row[5]
	}
	return d, nil
}

func invalidRow(format string, args ...any) error {
	return &ledger.Error{Kind: ledger.KindValidation, Op: "parse row", Err: fmt.Errorf(format, args...)}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}
