// journal/csv.go
package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/ledger/ledger"
)

var (
	signalHeader   = []string{"id", "time", "symbol", "type", "price", "quantity", "status", "reason", "close_date", "close_price", "realized_profit", "commission", "offsets"}
	snapshotHeader = []string{"time", "signal_id", "initial_balance", "current_balance", "available_balance", "total_profit", "total_commission", "position_cost", "position_quantity"}
)

// CSVExporter writes the signal log and account snapshots to two CSV files.
type CSVExporter struct {
	signals   *csv.Writer
	snapshots *csv.Writer
	sf, af    *os.File
}

// createFile opens export files; swapped in tests.
var createFile = os.Create

func NewCSVExporter(signalsPath, snapshotsPath string) (*CSVExporter, error) {
	sf, err := createFile(signalsPath)
	if err != nil {
		return nil, err
	}
	af, err := createFile(snapshotsPath)
	if err != nil {
		sf.Close()
		return nil, err
	}

	e := &CSVExporter{signals: csv.NewWriter(sf), snapshots: csv.NewWriter(af), sf: sf, af: af}
	if err := e.writeHeaders(); err != nil {
		sf.Close()
		af.Close()
		return nil, err
	}
	return e, nil
}

// writeHeaders writes and flushes both header rows so a bad destination
// fails here rather than on Close.
func (e *CSVExporter) writeHeaders() error {
	if err := e.signals.Write(signalHeader); err != nil {
		return err
	}
	if err := e.snapshots.Write(snapshotHeader); err != nil {
		return err
	}
	e.signals.Flush()
	if err := e.signals.Error(); err != nil {
		return fmt.Errorf("write signals header: %w", err)
	}
	e.snapshots.Flush()
	if err := e.snapshots.Error(); err != nil {
		return fmt.Errorf("write snapshots header: %w", err)
	}
	return nil
}

func (e *CSVExporter) WriteSignal(s ledger.Signal) error {
	closeDate, closePrice := "", ""
	if s.CloseDate != nil {
		closeDate = s.CloseDate.UTC().Format(time.RFC3339)
	}
	if s.ClosePrice != nil {
		closePrice = s.ClosePrice.String()
	}
	return e.signals.Write([]string{
		s.ID,
		s.Time.UTC().Format(time.RFC3339),
		s.Symbol,
		string(s.Type),
		s.Price.String(),
		s.Quantity.String(),
		string(s.Status),
		s.Reason,
		closeDate,
		closePrice,
		s.RealizedProfit.String(),
		s.Commission.String(),
		strings.Join(s.Offsets, " "),
	})
}

func (e *CSVExporter) WriteSnapshot(s ledger.AccountSnapshot) error {
	a := s.Account
	return e.snapshots.Write([]string{
		s.Time.UTC().Format(time.RFC3339),
		s.SignalID,
		a.InitialBalance.String(),
		a.CurrentBalance.String(),
		a.AvailableBalance.String(),
		a.TotalProfit.String(),
		a.TotalCommission.String(),
		a.PositionCost.String(),
		a.PositionQuantity.String(),
	})
}

// Close flushes both writers and closes both files, reporting every failure.
func (e *CSVExporter) Close() error {
	e.signals.Flush()
	e.snapshots.Flush()
	return errors.Join(
		e.signals.Error(),
		e.snapshots.Error(),
		e.sf.Close(),
		e.af.Close(),
	)
}
