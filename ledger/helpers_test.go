package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/ledger/journal"
	"github.com/rustyeddy/ledger/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

var backends = []struct {
	name string
	open func(t *testing.T) ledger.Store
}{
	{"memory", func(t *testing.T) ledger.Store { return journal.NewMemory() }},
	{"sqlite", func(t *testing.T) ledger.Store {
		s, err := journal.NewSQLite(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}},
}

// forEachBackend runs fn once per store implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, store ledger.Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.open(t))
		})
	}
}

var t0 = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return t0 }

// newLedger returns an initialized ledger: the account exists.
func newLedger(t *testing.T, store ledger.Store, opts ledger.Options) *ledger.Ledger {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = fixedClock
	}
	l := ledger.New(store, nil, opts)
	_, err := l.GetAccount(context.Background())
	require.NoError(t, err)
	return l
}

type harness struct {
	t    *testing.T
	l    *ledger.Ledger
	tick int
}

func (h *harness) draft(typ ledger.SignalType, symbol, price, qty string) ledger.Draft {
	h.tick++
	return ledger.Draft{
		Time:     t0.Add(time.Duration(h.tick) * time.Minute),
		Symbol:   symbol,
		Type:     typ,
		Price:    dec(price),
		Quantity: dec(qty),
	}
}

func (h *harness) apply(typ ledger.SignalType, symbol, price, qty string) ledger.Signal {
	h.t.Helper()
	sig, err := h.l.ApplySignal(context.Background(), h.draft(typ, symbol, price, qty))
	require.NoError(h.t, err)
	return sig
}

func (h *harness) try(typ ledger.SignalType, symbol, price, qty string) error {
	_, err := h.l.ApplySignal(context.Background(), h.draft(typ, symbol, price, qty))
	return err
}

func (h *harness) account() ledger.Account {
	h.t.Helper()
	a, err := h.l.GetAccount(context.Background())
	require.NoError(h.t, err)
	return a
}

func (h *harness) signal(id string) ledger.Signal {
	h.t.Helper()
	s, err := h.l.GetSignal(context.Background(), id)
	require.NoError(h.t, err)
	return s
}

func (h *harness) position(symbol string) (ledger.Position, bool) {
	h.t.Helper()
	p, ok, err := h.l.GetPosition(context.Background(), symbol)
	require.NoError(h.t, err)
	return p, ok
}

// assertBalanced checks the account invariants and that the account total
// profit equals the realized profit of every CLOSED signal.
func (h *harness) assertBalanced() {
	h.t.Helper()
	ctx := context.Background()
	a := h.account()

	assert.True(h.t, a.AvailableBalance.Equal(a.CurrentBalance.Sub(a.PositionCost)),
		"available %s != current %s - cost %s", a.AvailableBalance, a.CurrentBalance, a.PositionCost)
	assert.True(h.t, a.AvailableBalance.LessThanOrEqual(a.CurrentBalance))

	closed, err := h.l.ListSignals(ctx, ledger.SignalFilter{Status: ledger.StatusClosed})
	require.NoError(h.t, err)
	sum := decimal.Zero
	for _, s := range closed {
		sum = sum.Add(s.RealizedProfit)
	}
	assert.True(h.t, sum.Equal(a.TotalProfit), "closed profit %s != total profit %s", sum, a.TotalProfit)

	positions, err := h.l.ListPositions(ctx)
	require.NoError(h.t, err)
	qty, cost := decimal.Zero, decimal.Zero
	for _, p := range positions {
		qty = qty.Add(p.Quantity)
		cost = cost.Add(p.Reserved)
	}
	assert.True(h.t, qty.Equal(a.PositionQuantity), "position qty %s != account %s", qty, a.PositionQuantity)
	assert.True(h.t, cost.Equal(a.PositionCost), "reserved %s != position cost %s", cost, a.PositionCost)
}

var errInjected = errors.New("injected failure")

// faultStore fails the named Tx method of every transaction it hands out.
type faultStore struct {
	ledger.Store
	failOn string
}

func (s *faultStore) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultTx{Tx: tx, failOn: s.failOn}, nil
}

type faultTx struct {
	ledger.Tx
	failOn string
}

func (t *faultTx) InsertSignal(ctx context.Context, s ledger.Signal) error {
	if t.failOn == "InsertSignal" {
		return errInjected
	}
	return t.Tx.InsertSignal(ctx, s)
}

func (t *faultTx) UpdateSignal(ctx context.Context, s ledger.Signal) error {
	if t.failOn == "UpdateSignal" {
		return errInjected
	}
	return t.Tx.UpdateSignal(ctx, s)
}

func (t *faultTx) RecordSnapshot(ctx context.Context, s ledger.AccountSnapshot) error {
	if t.failOn == "RecordSnapshot" {
		return errInjected
	}
	return t.Tx.RecordSnapshot(ctx, s)
}

// Commit fails after discarding the writes, the way a failed database
// commit ends the transaction.
func (t *faultTx) Commit() error {
	if t.failOn == "Commit" {
		_ = t.Tx.Rollback()
		return errInjected
	}
	return t.Tx.Commit()
}

func journalMemory() ledger.Store { return journal.NewMemory() }
