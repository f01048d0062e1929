// Package ledger settles trade signals into positions, an account and a
// signal log. Every mutating call runs in a single store transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/ledger/instrument"
	"github.com/rustyeddy/ledger/internal/id"
	"github.com/rustyeddy/ledger/risk"
)

// InstrumentRules resolves the multiplier and margin treatment of a symbol.
// A non-nil error with a usable Spec means the symbol fell back to defaults.
type InstrumentRules interface {
	Resolve(symbol string) (instrument.Spec, error)
}

type Options struct {
	InitialBalance decimal.Decimal
	CommissionRate decimal.Decimal
	MinCommission  decimal.Decimal
	Matching       Matching
	Risk           risk.Policy
	Logger         *zap.Logger
	Clock          func() time.Time
}

type Ledger struct {
	mu    sync.Mutex
	store Store
	rules InstrumentRules
	opts  Options
	log   *zap.Logger
	now   func() time.Time
}

func New(store Store, rules InstrumentRules, opts Options) *Ledger {
	if rules == nil {
		rules = instrument.NewRules()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Matching == "" {
		opts.Matching = LIFO
	}
	if !opts.InitialBalance.IsPositive() {
		opts.InitialBalance = DefaultInitialBalance
	}
	return &Ledger{
		store: store,
		rules: rules,
		opts:  opts,
		log:   opts.Logger,
		now:   opts.Clock,
	}
}

// ApplySignal validates d, settles it against the position and the account,
// and returns the recorded signal. Nothing is persisted when it fails.
func (l *Ledger) ApplySignal(ctx context.Context, d Draft) (Signal, error) {
	const op = "apply signal"

	if err := validateDraft(d); err != nil {
		return Signal{}, err
	}
	spec := l.resolve(d.Symbol)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	at := d.Time.UTC()
	if d.Time.IsZero() {
		at = now
	}
	sigID, err := id.At(at)
	if err != nil {
		return Signal{}, validationf(op, "signal time: %v", err)
	}
	sig := Signal{
		ID:             sigID,
		Time:           at,
		Symbol:         spec.Symbol,
		Type:           d.Type,
		Price:          d.Price,
		Quantity:       d.Quantity,
		Reason:         strings.TrimSpace(d.Reason),
		RealizedProfit: decimal.Zero,
		Commission:     decimal.Zero,
	}

	err = l.inTx(ctx, op, func(tx Tx) error {
		var (
			acct Account
			err  error
		)
		if sig.Type.IsOpen() {
			acct, err = l.open(ctx, tx, &sig, spec)
		} else {
			acct, err = l.close(ctx, tx, &sig, spec)
		}
		if err != nil {
			return err
		}
		return tx.RecordSnapshot(ctx, AccountSnapshot{Time: now, SignalID: sig.ID, Account: acct})
	})
	if err != nil {
		l.log.Warn("signal rejected",
			zap.String("symbol", sig.Symbol),
			zap.String("type", string(sig.Type)),
			zap.String("quantity", sig.Quantity.String()),
			zap.String("price", sig.Price.String()),
			zap.Error(err))
		return Signal{}, err
	}

	l.log.Info("signal applied",
		zap.String("signal_id", sig.ID),
		zap.String("symbol", sig.Symbol),
		zap.String("type", string(sig.Type)),
		zap.String("quantity", sig.Quantity.String()),
		zap.String("price", sig.Price.String()),
		zap.String("status", string(sig.Status)),
		zap.String("realized_profit", sig.RealizedProfit.String()),
		zap.Strings("offsets", sig.Offsets))
	return sig, nil
}

// UpdateSignalStatus applies an administrative patch. Moving an opening
// signal to CLOSED settles its remaining lot at p.ClosePrice; profit is
// always computed here, never taken from the caller.
func (l *Ledger) UpdateSignalStatus(ctx context.Context, signalID string, p Patch) (Signal, error) {
	const op = "update signal"

	l.mu.Lock()
	defer l.mu.Unlock()

	var out Signal
	err := l.inTx(ctx, op, func(tx Tx) error {
		sig, ok, err := tx.Signal(ctx, signalID)
		if err != nil {
			return err
		}
		if !ok {
			return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("signal %q", signalID)}
		}

		if p.Reason != nil {
			sig.Reason = strings.TrimSpace(*p.Reason)
		}

		switch {
		case p.Status != nil && *p.Status != sig.Status:
			acct, err := l.forceClose(ctx, tx, &sig, p)
			if err != nil {
				return err
			}
			snap := AccountSnapshot{Time: l.now().UTC(), SignalID: sig.ID, Account: acct}
			if err := tx.RecordSnapshot(ctx, snap); err != nil {
				return err
			}
		case p.ClosePrice != nil || p.CloseDate != nil:
			return validationf(op, "close fields are written by settlement; patch the status to %s instead", StatusClosed)
		}

		out = sig
		return tx.UpdateSignal(ctx, sig)
	})
	if err != nil {
		l.log.Warn("signal update rejected", zap.String("signal_id", signalID), zap.Error(err))
		return Signal{}, err
	}

	l.log.Info("signal updated",
		zap.String("signal_id", out.ID),
		zap.String("status", string(out.Status)),
		zap.String("realized_profit", out.RealizedProfit.String()))
	return out, nil
}

// RemoveSignal deletes a signal from the log. Signals that still back an
// open lot or carry realized profit stay, so the account total keeps matching
// the log. Offsets on other signals may still name a removed signal.
func (l *Ledger) RemoveSignal(ctx context.Context, signalID string) error {
	const op = "remove signal"

	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.inTx(ctx, op, func(tx Tx) error {
		sig, ok, err := tx.Signal(ctx, signalID)
		if err != nil {
			return err
		}
		if !ok {
			return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("signal %q", signalID)}
		}
		switch {
		case sig.Type.IsOpen() && sig.Status.Unresolved():
			return validationf(op, "signal %s still backs an open %s lot; close it first", signalID, sig.Symbol)
		case !sig.RealizedProfit.IsZero():
			return validationf(op, "signal %s carries realized profit %s", signalID, sig.RealizedProfit)
		}
		return tx.DeleteSignal(ctx, signalID)
	})
	if err != nil {
		return err
	}

	l.log.Info("signal removed", zap.String("signal_id", signalID))
	return nil
}

// GetAccount returns the account, creating it with the configured initial
// balance the first time.
func (l *Ledger) GetAccount(ctx context.Context) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var acct Account
	err := l.inTx(ctx, "get account", func(tx Tx) error {
		var err error
		acct, err = NewAccountLedger(tx, l.opts.InitialBalance, l.now).Get(ctx)
		return err
	})
	return acct, err
}

func (l *Ledger) GetPosition(ctx context.Context, symbol string) (Position, bool, error) {
	var (
		pos Position
		ok  bool
	)
	err := l.view(ctx, "get position", func(tx Tx) error {
		var err error
		pos, ok, err = tx.Position(ctx, instrument.Normalize(symbol))
		return err
	})
	return pos, ok, err
}

func (l *Ledger) ListPositions(ctx context.Context) ([]Position, error) {
	var out []Position
	err := l.view(ctx, "list positions", func(tx Tx) error {
		var err error
		out, err = tx.Positions(ctx)
		return err
	})
	return out, err
}

func (l *Ledger) GetSignal(ctx context.Context, signalID string) (Signal, error) {
	const op = "get signal"

	var sig Signal
	err := l.view(ctx, op, func(tx Tx) error {
		s, ok, err := tx.Signal(ctx, signalID)
		if err != nil {
			return err
		}
		if !ok {
			return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("signal %q", signalID)}
		}
		sig = s
		return nil
	})
	return sig, err
}

func (l *Ledger) ListSignals(ctx context.Context, f SignalFilter) ([]Signal, error) {
	if f.Symbol != "" {
		f.Symbol = instrument.Normalize(f.Symbol)
	}
	var out []Signal
	err := l.view(ctx, "list signals", func(tx Tx) error {
		var err error
		out, err = tx.Signals(ctx, f)
		return err
	})
	return out, err
}

// AccountHistory returns up to limit of the most recent account snapshots,
// oldest first.
func (l *Ledger) AccountHistory(ctx context.Context, limit int) ([]AccountSnapshot, error) {
	var out []AccountSnapshot
	err := l.view(ctx, "account history", func(tx Tx) error {
		var err error
		out, err = tx.Snapshots(ctx, limit)
		return err
	})
	return out, err
}

func (l *Ledger) open(ctx context.Context, tx Tx, sig *Signal, spec instrument.Spec) (Account, error) {
	accounts := NewAccountLedger(tx, l.opts.InitialBalance, l.now)
	acct, err := accounts.Load(ctx)
	if err != nil {
		return Account{}, err
	}

	notional := sig.Price.Mul(sig.Quantity).Mul(decimal.NewFromInt(int64(spec.Multiplier)))
	r := Reservation{
		Notional:    notional,
		Margined:    spec.Margined,
		MarginRatio: spec.MarginRatio,
		Commission:  l.commission(notional),
		Quantity:    sig.Quantity,
	}

	if err := l.checkRisk(ctx, tx, sig.Symbol, r, acct); err != nil {
		return Account{}, err
	}

	book := NewPositionBook(tx, l.now)
	if _, err := book.ApplyOpen(ctx, sig.Symbol, sig.Type.Side(), sig.Price, sig.Quantity, r.Reserve()); err != nil {
		return Account{}, err
	}
	acct, err = accounts.ReserveOnOpen(ctx, r)
	if err != nil {
		return Account{}, err
	}

	_, err = tx.AddLot(ctx, Lot{
		SignalID:  sig.ID,
		Symbol:    sig.Symbol,
		Side:      sig.Type.Side(),
		Price:     sig.Price,
		Quantity:  sig.Quantity,
		Remaining: sig.Quantity,
		OpenedAt:  sig.Time,
	})
	if err != nil {
		return Account{}, err
	}

	sig.Status = StatusOpen
	sig.Commission = r.Commission
	return acct, tx.InsertSignal(ctx, *sig)
}

func (l *Ledger) close(ctx context.Context, tx Tx, sig *Signal, spec instrument.Spec) (Account, error) {
	side := sig.Type.Side()

	res, err := l.settleClose(ctx, tx, sig.Symbol, side, sig.Quantity, sig.Price, spec)
	if err != nil {
		return Account{}, err
	}

	offsets, err := consumeLots(ctx, tx, l.opts.Matching, sig.Symbol, side, sig.Quantity, sig.Price, sig.Time)
	if err != nil {
		return Account{}, err
	}

	price := sig.Price
	at := sig.Time
	sig.Status = StatusClosed
	sig.ClosePrice = &price
	sig.CloseDate = &at
	sig.RealizedProfit = res.pnl
	sig.Commission = res.commission
	sig.Offsets = offsets
	return res.account, tx.InsertSignal(ctx, *sig)
}

// forceClose settles the remaining lot of an opening signal at the patched
// close price.
func (l *Ledger) forceClose(ctx context.Context, tx Tx, sig *Signal, p Patch) (Account, error) {
	const op = "update signal"

	target := *p.Status
	switch {
	case target != StatusClosed:
		return Account{}, validationf(op, "status %s is only reached through settlement", target)
	case !sig.Type.IsOpen():
		return Account{}, validationf(op, "%s signals settle when applied", sig.Type)
	case p.ClosePrice == nil || !p.ClosePrice.IsPositive():
		return Account{}, validationf(op, "closing %s needs a positive close price", sig.ID)
	}

	lot, ok, err := tx.Lot(ctx, sig.ID)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return Account{}, insufficientf(op, "signal %s has no open lot", sig.ID)
	}

	at := l.now().UTC()
	if p.CloseDate != nil {
		at = p.CloseDate.UTC()
	}

	spec := l.resolve(sig.Symbol)
	res, err := l.settleClose(ctx, tx, sig.Symbol, lot.Side, lot.Remaining, *p.ClosePrice, spec)
	if err != nil {
		return Account{}, err
	}
	if err := tx.DeleteLot(ctx, sig.ID); err != nil {
		return Account{}, err
	}

	price := *p.ClosePrice
	sig.Status = StatusClosed
	sig.ClosePrice = &price
	sig.CloseDate = &at
	sig.RealizedProfit = sig.RealizedProfit.Add(res.pnl)
	sig.Commission = sig.Commission.Add(res.commission)
	return res.account, nil
}

type closeResult struct {
	pnl        decimal.Decimal
	commission decimal.Decimal
	account    Account
}

// settleClose computes realized P&L against the weighted average, reduces
// the position and credits the account. Lots are left to the caller.
func (l *Ledger) settleClose(ctx context.Context, tx Tx, symbol string, side Side, qty, price decimal.Decimal, spec instrument.Spec) (closeResult, error) {
	const op = "settle close"

	accounts := NewAccountLedger(tx, l.opts.InitialBalance, l.now)
	if _, err := accounts.Load(ctx); err != nil {
		return closeResult{}, err
	}

	book := NewPositionBook(tx, l.now)
	pos, ok, err := book.Get(ctx, symbol)
	if err != nil {
		return closeResult{}, err
	}
	if !ok {
		return closeResult{}, insufficientf(op, "no position in %s", symbol)
	}

	pnl := side.PnL(pos.AvgPrice, price, qty, spec.Multiplier)
	notional := price.Mul(qty).Mul(decimal.NewFromInt(int64(spec.Multiplier)))
	commission := l.commission(notional)

	_, _, released, err := book.ApplyClose(ctx, symbol, side, qty)
	if err != nil {
		return closeResult{}, err
	}

	acct, err := accounts.SettleOnClose(ctx, Settlement{
		Released:    released,
		RealizedPnL: pnl,
		Commission:  commission,
		Quantity:    qty,
	})
	if err != nil {
		return closeResult{}, err
	}
	return closeResult{pnl: pnl, commission: commission, account: acct}, nil
}

func (l *Ledger) checkRisk(ctx context.Context, tx Tx, symbol string, r Reservation, acct Account) error {
	if !l.opts.Risk.Enabled() {
		return nil
	}

	positions, err := tx.Positions(ctx)
	if err != nil {
		return err
	}
	snap := risk.AccountSnapshot{
		CurrentBalance:   acct.CurrentBalance,
		AvailableBalance: acct.AvailableBalance,
		PositionCost:     acct.PositionCost,
		OpenPositions:    len(positions),
	}
	for _, p := range positions {
		if p.Symbol == symbol {
			snap.HasPosition = true
		}
	}

	d := risk.Evaluate(l.opts.Risk, risk.Intent{Symbol: symbol, Reserve: r.Reserve(), Commission: r.Commission}, snap)
	if !d.Allowed {
		return validationf("risk check", "%s rejected: %s", symbol, d.Error())
	}
	return nil
}

func (l *Ledger) commission(notional decimal.Decimal) decimal.Decimal {
	if !l.opts.CommissionRate.IsPositive() {
		return decimal.Zero
	}
	c := notional.Mul(l.opts.CommissionRate)
	if c.LessThan(l.opts.MinCommission) {
		return l.opts.MinCommission
	}
	return c
}

func (l *Ledger) resolve(symbol string) instrument.Spec {
	spec, err := l.rules.Resolve(symbol)
	if spec.Symbol == "" {
		spec.Symbol = instrument.Normalize(symbol)
	}
	if spec.Multiplier <= 0 {
		spec.Multiplier = 1
	}
	if err != nil {
		l.log.Warn("settling with default instrument rules",
			zap.String("symbol", spec.Symbol),
			zap.Int("multiplier", spec.Multiplier),
			zap.Error(&Error{Kind: KindUnknownInstrument, Op: "resolve instrument", Err: err}))
	}
	return spec
}

// inTx runs fn in a transaction and commits it. Any error rolls back
// everything fn wrote. Errors that are not already typed are store failures.
func (l *Ledger) inTx(ctx context.Context, op string, fn func(tx Tx) error) error {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return persistence(op, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			l.log.Error("rollback failed", zap.String("op", op), zap.Error(rbErr))
		}
		var le *Error
		if errors.As(err, &le) {
			return err
		}
		return persistence(op, err)
	}

	if err := tx.Commit(); err != nil {
		return persistence(op, err)
	}
	return nil
}

// view runs a read-only fn and always rolls back.
func (l *Ledger) view(ctx context.Context, op string, fn func(tx Tx) error) error {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return persistence(op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		var le *Error
		if errors.As(err, &le) {
			return err
		}
		return persistence(op, err)
	}
	return nil
}

func validateDraft(d Draft) error {
	const op = "validate signal"

	switch {
	case strings.TrimSpace(d.Symbol) == "":
		return validationf(op, "symbol is required")
	case !d.Type.Valid():
		return validationf(op, "unknown signal type %q", d.Type)
	case !d.Quantity.IsPositive():
		return validationf(op, "quantity must be positive, got %s", d.Quantity)
	case !d.Price.IsPositive():
		return validationf(op, "price must be positive, got %s", d.Price)
	case !d.Time.IsZero() && !id.InRange(d.Time):
		return validationf(op, "time %s is before 1970 or past the id range", d.Time.UTC().Format(time.RFC3339))
	}
	return nil
}
