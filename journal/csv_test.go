package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/ledger/ledger"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVExporterHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sigPath := filepath.Join(dir, "signals.csv")
	snapPath := filepath.Join(dir, "snapshots.csv")

	e, err := NewCSVExporter(sigPath, snapPath)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	sigRows := readCSV(t, sigPath)
	require.Len(t, sigRows, 1)
	assert.Equal(t, signalHeader, sigRows[0])

	snapRows := readCSV(t, snapPath)
	require.Len(t, snapRows, 1)
	assert.Equal(t, []string{"time", "signal_id", "initial_balance", "current_balance", "available_balance", "total_profit", "total_commission", "position_cost", "position_quantity"}, snapRows[0])
}

func TestCSVExporterRows(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sigPath := filepath.Join(dir, "signals.csv")
	snapPath := filepath.Join(dir, "snapshots.csv")

	e, err := NewCSVExporter(sigPath, snapPath)
	require.NoError(t, err)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cp := d("3100")
	require.NoError(t, e.WriteSignal(ledger.Signal{
		ID: "S2", Time: at, Symbol: "RB2410", Type: ledger.SellClose,
		Price: cp, Quantity: d("10"), Status: ledger.StatusClosed, Reason: "target, hit",
		CloseDate: &at, ClosePrice: &cp, RealizedProfit: d("10000"), Commission: d("9.3"),
		Offsets: []string{"S1", "S0"},
	}))
	require.NoError(t, e.WriteSignal(ledger.Signal{
		ID: "S3", Time: at, Symbol: "600519", Type: ledger.BuyOpen,
		Price: d("1500"), Quantity: d("100"), Status: ledger.StatusOpen,
		RealizedProfit: d("0"), Commission: d("0"),
	}))
	require.NoError(t, e.WriteSnapshot(ledger.AccountSnapshot{
		Time: at, SignalID: "S2",
		Account: ledger.Account{
			InitialBalance: d("1000000"), CurrentBalance: d("1009981.4"), AvailableBalance: d("1009981.4"),
			TotalProfit: d("10000"), TotalCommission: d("18.6"), PositionCost: d("0"), PositionQuantity: d("0"),
		},
	}))
	require.NoError(t, e.Close())

	sigRows := readCSV(t, sigPath)
	require.Len(t, sigRows, 3)
	assert.Equal(t, []string{
		"S2", "2024-01-02T03:04:05Z", "RB2410", "SELL_CLOSE", "3100", "10", "CLOSED", "target, hit",
		"2024-01-02T03:04:05Z", "3100", "10000", "9.3", "S1 S0",
	}, sigRows[1])
	assert.Equal(t, "", sigRows[2][8])
	assert.Equal(t, "", sigRows[2][9])

	snapRows := readCSV(t, snapPath)
	require.Len(t, snapRows, 2)
	assert.Equal(t, []string{
		"2024-01-02T03:04:05Z", "S2", "1000000", "1009981.4", "1009981.4", "10000", "18.6", "0", "0",
	}, snapRows[1])
}

func TestCSVExporterBadPath(t *testing.T) {
	t.Parallel()

	_, err := NewCSVExporter(filepath.Join(t.TempDir(), "missing", "s.csv"), "x.csv")
	assert.Error(t, err)
}

// A destination that rejects writes fails at construction and leaves no file
// open. Not parallel: it swaps createFile.
func TestCSVExporterHeaderFailureClosesFiles(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}

	var opened []*os.File
	createFile = func(name string) (*os.File, error) {
		f, err := os.Create(name)
		if err == nil {
			opened = append(opened, f)
		}
		return f, err
	}
	t.Cleanup(func() { createFile = os.Create })

	_, err := NewCSVExporter(filepath.Join(t.TempDir(), "signals.csv"), "/dev/full")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshots header")

	require.Len(t, opened, 2)
	for _, f := range opened {
		assert.ErrorIs(t, f.Close(), os.ErrClosed, f.Name())
	}
}
