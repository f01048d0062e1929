package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rustyeddy/ledger/ledger"
	"github.com/rustyeddy/ledger/risk"
)

var feeOpts = ledger.Options{
	CommissionRate: dec("0.0001"),
	MinCommission:  dec("5"),
}

func TestWeightedAverage(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store ledger.Store) {
		h := &harness{t: t, l: newLedger(t, store, ledger.Options{})}

		h.apply(ledger.BuyOpen, "600519", "100", "10")
		h.apply(ledger.BuyOpen, "600519", "200", "10")

		pos, ok := h.position("600519")
		require.True(t, ok)
		assert.Equal(t, ledger.Long, pos.Side)
		assert.Equal(t, ledger.PositionOpen, pos.Status)
		assertDec(t, "150", pos.AvgPrice)
		assertDec(t, "20", pos.Quantity)
		// cash instrument: the whole notional is reserved
		assertDec(t, "3000", pos.Reserved)

		acct := h.account()
		assertDec(t, "997000", acct.AvailableBalance)
		assertDec(t, "1000000", acct.CurrentBalance)
		assertDec(t, "20", acct.PositionQuantity)
		h.assertBalanced()
	})
}

func TestFullCloseMarginedFuture(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store ledger.Store) {
		h := &harness{t: t, l: newLedger(t, store, feeOpts)}

		open := h.apply(ledger.BuyOpen, "RB2410", "3000", "10")
		assert.Equal(t, ledger.StatusOpen, open.Status)
		assertDec(t, "30", open.Commission)

		pos, ok := h.position("RB2410")
		require.True(t, ok)
		// 3000 * 10 qty * 10 multiplier * 10% margin
		assertDec(t, "30000", pos.Reserved)

		acct := h.account()
		assertDec(t, "969970", acct.AvailableBalance)
		assertDec(t, "999970", acct.CurrentBalance)
		assertDec(t, "30000", acct.PositionCost)

		closing := h.apply(ledger.SellClose, "RB2410", "3100", "10")
		assert.Equal(t, ledger.StatusClosed, closing.Status)
		assertDec(t, "10000", closing.RealizedProfit)
		assertDec(t, "31", closing.Commission)
		require.NotNil(t, closing.ClosePrice)
		assertDec(t, "3100", *closing.ClosePrice)
		require.NotNil(t, closing.CloseDate)
		assert.True(t, closing.CloseDate.Equal(closing.Time))
		assert.Equal(t, []string{open.ID}, closing.Offsets)

		_, ok = h.position("RB2410")
		assert.False(t, ok, "position removed at zero")

		acct = h.account()
		assertDec(t, "10000", acct.TotalProfit)
		assertDec(t, "61", acct.TotalCommission)
		assertDec(t, "0", acct.PositionCost)
		assertDec(t, "0", acct.PositionQuantity)
		assertDec(t, "1009939", acct.CurrentBalance)
		assertDec(t, "1009939", acct.AvailableBalance)

		opened := h.signal(open.ID)
		assert.Equal(t, ledger.StatusClosed, opened.Status)
		require.NotNil(t, opened.ClosePrice)
		assertDec(t, "3100", *opened.ClosePrice)
		assertDec(t, "0", opened.RealizedProfit)
		h.assertBalanced()
	})
}

func TestPartialClose(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store ledger.Store) {
		h := &harness{t: t, l: newLedger(t, store, ledger.Options{})}

		open := h.apply(ledger.BuyOpen, "RB2410", "3000", "10")
		closing := h.apply(ledger.SellClose, "RB2410", "3100", "4")

		pos, ok := h.position("RB2410")
		require.True(t, ok)
		assertDec(t, "6", pos.Quantity)
		assertDec(t, "3000", pos.AvgPrice)
		assertDec(t, "18000", pos.Reserved)
		assert.Equal(t, ledger.PositionPartialClosed, pos.Status)

		assertDec(t, "4000", closing.RealizedProfit)
		assert.Equal(t, ledger.StatusClosed, closing.Status)
		assert.Equal(t, ledger.StatusPartialClosed, h.signal(open.ID).Status)
		assert.Nil(t, h.signal(open.ID).ClosePrice)

		acct := h.account()
		assertDec(t, "18000", acct.PositionCost)
		assertDec(t, "6", acct.PositionQuantity)
		h.assertBalanced()
	})
}

func TestCloseFlatSymbol(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		h := &harness{t: t, l: newLedger(t, store, feeOpts)}

		h.apply(ledger.BuyOpen, "RB2410", "3000", "10")
		h.apply(ledger.SellClose, "RB2410", "3100", "10")
		before := h.account()
		history, err := h.l.AccountHistory(ctx, 0)
		require.NoError(t, err)

		err = h.try(ledger.SellClose, "RB2410", "3100", "10")
		require.Error(t, err)
		assert.ErrorIs(t, err, ledger.ErrInsufficientPosition)
		assert.False(t, ledger.IsRetryable(err))

		after := h.account()
		assert.True(t, before.CurrentBalance.Equal(after.CurrentBalance))
		assert.True(t, before.AvailableBalance.Equal(after.AvailableBalance))
		assert.True(t, before.TotalProfit.Equal(after.TotalProfit))
		assert.True(t, before.TotalCommission.Equal(after.TotalCommission))

		again, err := h.l.AccountHistory(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, again, len(history))

		sigs, err := h.l.ListSignals(ctx, ledger.SignalFilter{})
		require.NoError(t, err)
		assert.Len(t, sigs, 2)
	})
}

func TestOverClose(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store ledger.Store) {
		h := &harness{t: t, l: newLedger(t, store, ledger.Options{})}

		h.apply(ledger.BuyOpen, "600519", "100", "5")
		err := h.try(ledger.SellClose, "600519", "110", "6")
		assert.ErrorIs(t, err, ledger.ErrInsufficientPosition)

		pos, ok := h.position("600519")
		require.True(t, ok)
		assertDec(t, "5", pos.Quantity)
		h.assertBalanced()
	})
}

func TestShortRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store ledger.Store) {
		h := &harness{t: t, l: newLedger(t, store, ledger.Options{})}

		open := h.apply(ledger.SellOpen, "IF2409", "3500", "2")
		pos, ok := h.position("IF2409")
		require.True(t, ok)
		assert.Equal(t, ledger.Short, pos.Side)
		// 3500 * 2 * 300 * 12%
		assertDec(t, "252000", pos.Reserved)

		err := h.try(ledger.SellClose, "IF2409", "3400", "2")
		assert.ErrorIs(t, err, ledger.ErrInsufficientPosition, "SELL_CLOSE offsets longs only")

		err = h.try(ledger.BuyOpen, "IF2409", "3400", "1")
		assert.ErrorIs(t, err, ledger.ErrValidation, "opposite side open")

		closing := h.apply(ledger.BuyClose, "IF2409", "3400", "2")
		assertDec(t, "60000", closing.RealizedProfit)
		assert.Equal(t, []string{open.ID}, closing.Offsets)

		_, ok = h.position("IF2409")
		assert.False(t, ok)
		assertDec(t, "60000", h.account().TotalProfit)
		h.assertBalanced()
	})
}

func TestShortLoss(t *testing.T) {
	h := &harness{t: t, l: newLedger(t, journalMemory(), ledger.Options{})}

	h.apply(ledger.SellOpen, "600000", "10", "100")
	closing := h.apply(ledger.BuyClose, "600000", "12.5", "100")
	assertDec(t, "-250", closing.RealizedProfit)
	assertDec(t, "-250", h.account().TotalProfit)
	assertDec(t, "999750", h.account().AvailableBalance)
	h.assertBalanced()
}

func TestLotMatching(t *testing.T) {
	tests := []struct {
		name          string
		matching      ledger.Matching
		firstOffsets  []string
		secondOffsets []string
		statusA       ledger.SignalStatus
		statusB       ledger.SignalStatus
	}{
		{
			name:          "lifo",
			matching:      ledger.LIFO,
			firstOffsets:  []string{"B"},
			secondOffsets: []string{"B", "A"},
			statusA:       ledger.StatusPartialClosed,
			statusB:       ledger.StatusClosed,
		},
		{
			name:          "fifo",
			matching:      ledger.FIFO,
			firstOffsets:  []string{"A"},
			secondOffsets: []string{"A", "B"},
			statusA:       ledger.StatusClosed,
			statusB:       ledger.StatusPartialClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forEachBackend(t, func(t *testing.T, store ledger.Store) {
				h := &harness{t: t, l: newLedger(t, store, ledger.Options{Matching: tt.matching})}

				ids := map[string]string{
					"A": h.apply(ledger.BuyOpen, "600000", "100", "5").ID,
					"B": h.apply(ledger.BuyOpen, "600000", "200", "5").ID,
				}
				name := func(offsets []string) []string {
					var out []string
					for _, o := range offsets {
						for k, v := range ids {
							if v == o {
								out = append(out, k)
							}
						}
					}
					return out
				}

				first := h.apply(ledger.SellClose, "600000", "180", "3")
				assert.Equal(t, tt.firstOffsets, name(first.Offsets))
				// P&L is measured against the weighted average, not the lot price
				assertDec(t, "90", first.RealizedProfit)

				second := h.apply(ledger.SellClose, "600000", "150", "4")
				assert.Equal(t, tt.secondOffsets, name(second.Offsets))
				assertDec(t, "0", second.RealizedProfit)

				assert.Equal(t, tt.statusA, h.signal(ids["A"]).Status)
				assert.Equal(t, tt.statusB, h.signal(ids["B"]).Status)

				pos, ok := h.position("600000")
				require.True(t, ok)
				assertDec(t, "3", pos.Quantity)
				h.assertBalanced()
			})
		})
	}
}

func TestConservation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store ledger.Store) {
		h := &harness{t: t, l: newLedger(t, store, feeOpts)}

		steps := []struct {
			typ    ledger.SignalType
			symbol string
			price  string
			qty    string
		}{
			{ledger.BuyOpen, "RB2410", "3000", "5"},
			{ledger.BuyOpen, "RB2410", "3050", "5"},
			{ledger.SellOpen, "IF2409", "3600", "1"},
			{ledger.BuyOpen, "510300", "3.912", "10000"},
			{ledger.SellClose, "RB2410", "2990", "3"},
			{ledger.BuyClose, "IF2409", "3650.4", "1"},
			{ledger.SellClose, "510300", "4.001", "2500"},
			{ledger.BuyOpen, "IO2409-C-3800", "52.2", "4"},
			{ledger.SellClose, "RB2410", "3100", "7"},
			{ledger.SellClose, "IO2409-C-3800", "60", "4"},
			{ledger.SellClose, "510300", "3.5", "7500"},
		}
		for _, s := range steps {
			h.apply(s.typ, s.symbol, s.price, s.qty)
			h.assertBalanced()
		}

		positions, err := h.l.ListPositions(context.Background())
		require.NoError(t, err)
		assert.Empty(t, positions)

		acct := h.account()
		assertDec(t, "0", acct.PositionCost)
		// flat account: every movement of current balance is profit or commission
		assert.True(t, acct.CurrentBalance.Equal(
			acct.InitialBalance.Add(acct.TotalProfit).Sub(acct.TotalCommission)))
		assert.True(t, acct.AvailableBalance.Equal(acct.CurrentBalance))
	})
}

func TestValidation(t *testing.T) {
	h := &harness{t: t, l: newLedger(t, journalMemory(), ledger.Options{})}

	tests := []struct {
		name   string
		typ    ledger.SignalType
		symbol string
		price  string
		qty    string
		at     time.Time
	}{
		{"zero quantity", ledger.BuyOpen, "600519", "100", "0", time.Time{}},
		{"negative quantity", ledger.BuyOpen, "600519", "100", "-1", time.Time{}},
		{"zero price", ledger.BuyOpen, "600519", "0", "1", time.Time{}},
		{"empty symbol", ledger.BuyOpen, "  ", "100", "1", time.Time{}},
		{"unknown type", ledger.SignalType("HOLD"), "600519", "100", "1", time.Time{}},
		{"before 1970", ledger.BuyOpen, "AAPL", "10", "1", time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"past id range", ledger.BuyOpen, "AAPL", "10", "1", time.Date(10890, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := h.draft(tt.typ, tt.symbol, tt.price, tt.qty)
			if !tt.at.IsZero() {
				d.Time = tt.at
			}
			var err error
			assert.NotPanics(t, func() {
				_, err = h.l.ApplySignal(context.Background(), d)
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ledger.ErrValidation)
			assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
		})
	}

	sigs, err := h.l.ListSignals(context.Background(), ledger.SignalFilter{})
	require.NoError(t, err)
	assert.Empty(t, sigs)
	h.assertBalanced()
}

func TestAccountNotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store ledger.Store) {
		l := ledger.New(store, nil, ledger.Options{Clock: fixedClock})
		h := &harness{t: t, l: l}

		err := h.try(ledger.BuyOpen, "600519", "100", "1")
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

		err = h.try(ledger.SellClose, "600519", "100", "1")
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

		acct := h.account()
		assertDec(t, "1000000", acct.InitialBalance)
		assertDec(t, "1000000", acct.AvailableBalance)

		h.apply(ledger.BuyOpen, "600519", "100", "1")
	})
}

func TestConfiguredInitialBalance(t *testing.T) {
	h := &harness{t: t, l: newLedger(t, journalMemory(), ledger.Options{InitialBalance: dec("50000")})}
	acct := h.account()
	assertDec(t, "50000", acct.InitialBalance)
	assertDec(t, "50000", acct.CurrentBalance)
	assert.True(t, acct.UpdatedAt.Equal(t0))
}

func TestUnknownInstrumentDegrades(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := &harness{t: t, l: newLedger(t, journalMemory(), ledger.Options{Logger: zap.New(core)})}

	h.apply(ledger.BuyOpen, "ZZ2410", "100", "2")

	pos, ok := h.position("ZZ2410")
	require.True(t, ok)
	// multiplier 1, cash treatment
	assertDec(t, "200", pos.Reserved)

	warns := logs.FilterMessage("settling with default instrument rules").All()
	require.Len(t, warns, 1)
	assert.Equal(t, "ZZ2410", warns[0].ContextMap()["symbol"])
}

func TestSymbolNormalized(t *testing.T) {
	h := &harness{t: t, l: newLedger(t, journalMemory(), ledger.Options{})}

	sig := h.apply(ledger.BuyOpen, "rb2410", "3000", "1")
	assert.Equal(t, "RB2410", sig.Symbol)

	_, ok := h.position("rb2410")
	assert.True(t, ok)

	sig = h.apply(ledger.BuyOpen, "600519.SH", "1500", "1")
	assert.Equal(t, "600519", sig.Symbol)

	sigs, err := h.l.ListSignals(context.Background(), ledger.SignalFilter{Symbol: "rb2410"})
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
}

func TestRiskPolicy(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store ledger.Store) {
		h := &harness{t: t, l: newLedger(t, store, ledger.Options{
			Risk: risk.Policy{MaxOpenPositions: 1, RequireAvailable: true},
		})}

		h.apply(ledger.BuyOpen, "600519", "100", "10")

		err := h.try(ledger.BuyOpen, "000001", "10", "10")
		require.ErrorIs(t, err, ledger.ErrValidation)
		assert.Contains(t, err.Error(), "TOO_MANY_OPEN_POSITIONS")

		// adding to the held symbol is not a new position
		h.apply(ledger.BuyOpen, "600519", "100", "10")

		err = h.try(ledger.BuyOpen, "600519", "100", "100000")
		require.ErrorIs(t, err, ledger.ErrValidation)
		assert.Contains(t, err.Error(), "INSUFFICIENT_AVAILABLE")

		// closes are never blocked
		h.apply(ledger.SellClose, "600519", "90", "20")
		h.apply(ledger.BuyOpen, "000001", "10", "10")
		h.assertBalanced()
	})
}

func TestAccountHistory(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		h := &harness{t: t, l: newLedger(t, store, ledger.Options{})}

		open := h.apply(ledger.BuyOpen, "600519", "100", "10")
		closing := h.apply(ledger.SellClose, "600519", "110", "10")

		all, err := h.l.AccountHistory(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, open.ID, all[0].SignalID)
		assertDec(t, "999000", all[0].Account.AvailableBalance)
		assert.Equal(t, closing.ID, all[1].SignalID)
		assertDec(t, "1000100", all[1].Account.CurrentBalance)

		last, err := h.l.AccountHistory(ctx, 1)
		require.NoError(t, err)
		require.Len(t, last, 1)
		assert.Equal(t, closing.ID, last[0].SignalID)
	})
}
