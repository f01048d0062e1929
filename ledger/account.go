package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInitialBalance seeds the account when no balance is configured.
var DefaultInitialBalance = decimal.NewFromInt(1000000)

// Reservation is the cash effect of an opening signal.
type Reservation struct {
	Notional    decimal.Decimal
	Margined    bool
	MarginRatio decimal.Decimal
	Commission  decimal.Decimal
	Quantity    decimal.Decimal
}

// Reserve is the amount taken out of the available balance, commission
// excluded.
func (r Reservation) Reserve() decimal.Decimal {
	if r.Margined {
		return r.Notional.Mul(r.MarginRatio)
	}
	return r.Notional
}

// Settlement is the cash effect of a closing signal.
type Settlement struct {
	Released    decimal.Decimal
	RealizedPnL decimal.Decimal
	Commission  decimal.Decimal
	Quantity    decimal.Decimal
}

// AccountLedger owns the singleton account inside one transaction.
type AccountLedger struct {
	tx      Tx
	initial decimal.Decimal
	now     func() time.Time
}

func NewAccountLedger(tx Tx, initial decimal.Decimal, now func() time.Time) *AccountLedger {
	if now == nil {
		now = time.Now
	}
	if !initial.IsPositive() {
		initial = DefaultInitialBalance
	}
	return &AccountLedger{tx: tx, initial: initial, now: now}
}

// Get returns the account, creating it with the initial balance on first use.
func (a *AccountLedger) Get(ctx context.Context) (Account, error) {
	acct, ok, err := a.tx.Account(ctx)
	if err != nil {
		return Account{}, err
	}
	if ok {
		return acct, nil
	}

	acct = Account{
		InitialBalance:   a.initial,
		CurrentBalance:   a.initial,
		AvailableBalance: a.initial,
		TotalProfit:      decimal.Zero,
		TotalCommission:  decimal.Zero,
		PositionCost:     decimal.Zero,
		PositionQuantity: decimal.Zero,
		UpdatedAt:        a.now().UTC(),
	}
	if err := a.tx.PutAccount(ctx, acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// Load returns the account or AccountNotFound. Settlements use Load so a
// ledger that was never initialized fails instead of silently starting over.
func (a *AccountLedger) Load(ctx context.Context) (Account, error) {
	acct, ok, err := a.tx.Account(ctx)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return Account{}, &Error{Kind: KindAccountNotFound, Op: "load account"}
	}
	return acct, nil
}

func (a *AccountLedger) ReserveOnOpen(ctx context.Context, r Reservation) (Account, error) {
	acct, err := a.Load(ctx)
	if err != nil {
		return Account{}, err
	}

	reserve := r.Reserve()
	acct.AvailableBalance = acct.AvailableBalance.Sub(reserve).Sub(r.Commission)
	acct.CurrentBalance = acct.CurrentBalance.Sub(r.Commission)
	acct.TotalCommission = acct.TotalCommission.Add(r.Commission)
	acct.PositionCost = acct.PositionCost.Add(reserve)
	acct.PositionQuantity = acct.PositionQuantity.Add(r.Quantity)
	acct.UpdatedAt = a.now().UTC()

	if err := a.tx.PutAccount(ctx, acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

func (a *AccountLedger) SettleOnClose(ctx context.Context, s Settlement) (Account, error) {
	acct, err := a.Load(ctx)
	if err != nil {
		return Account{}, err
	}

	net := s.RealizedPnL.Sub(s.Commission)
	acct.AvailableBalance = acct.AvailableBalance.Add(s.Released).Add(net)
	acct.CurrentBalance = acct.CurrentBalance.Add(net)
	acct.TotalProfit = acct.TotalProfit.Add(s.RealizedPnL)
	acct.TotalCommission = acct.TotalCommission.Add(s.Commission)
	acct.PositionCost = acct.PositionCost.Sub(s.Released)
	acct.PositionQuantity = acct.PositionQuantity.Sub(s.Quantity)
	acct.UpdatedAt = a.now().UTC()

	if err := a.tx.PutAccount(ctx, acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}
