package risk

import "github.com/shopspring/decimal"

// Policy limits what an opening signal may do to the account. The zero value
// allows everything, which matches a ledger that only records what happened.
type Policy struct {
	// MaxOpenPositions caps the number of symbols with exposure. 0 disables.
	MaxOpenPositions int

	// RequireAvailable rejects opens that would drive the available balance
	// below zero.
	RequireAvailable bool

	// MaxPositionCostPct caps position cost as a fraction of the current
	// balance after the open. 0 disables.
	MaxPositionCostPct decimal.Decimal
}

// Intent is the cash effect an opening signal is about to have.
type Intent struct {
	Symbol     string
	Reserve    decimal.Decimal
	Commission decimal.Decimal
}

// AccountSnapshot is the part of the account a policy looks at.
type AccountSnapshot struct {
	CurrentBalance   decimal.Decimal
	AvailableBalance decimal.Decimal
	PositionCost     decimal.Decimal

	OpenPositions int
	// HasPosition is true when Intent.Symbol already carries exposure, so the
	// open does not add a new position.
	HasPosition bool
}

// Enabled reports whether any limit is set.
func (p Policy) Enabled() bool {
	return p.MaxOpenPositions > 0 || p.RequireAvailable || p.MaxPositionCostPct.IsPositive()
}
