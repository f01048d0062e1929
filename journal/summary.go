package journal

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/ledger/ledger"
)

// Summary aggregates realized results of CLOSED signals.
type Summary struct {
	Closed       int
	Winners      int
	Losers       int
	GrossProfit  decimal.Decimal
	GrossLoss    decimal.Decimal
	NetProfit    decimal.Decimal
	Commission   decimal.Decimal
	ProfitFactor decimal.Decimal
}

func Summarize(sigs []ledger.Signal) Summary {
	s := Summary{
		GrossProfit: decimal.Zero,
		GrossLoss:   decimal.Zero,
		NetProfit:   decimal.Zero,
		Commission:  decimal.Zero,
	}
	for _, sig := range sigs {
		if sig.Status != ledger.StatusClosed {
			continue
		}
		s.Closed++
		s.Commission = s.Commission.Add(sig.Commission)
		s.NetProfit = s.NetProfit.Add(sig.RealizedProfit)
		switch {
		case sig.RealizedProfit.IsPositive():
			s.Winners++
			s.GrossProfit = s.GrossProfit.Add(sig.RealizedProfit)
		case sig.RealizedProfit.IsNegative():
			s.Losers++
			s.GrossLoss = s.GrossLoss.Add(sig.RealizedProfit.Abs())
		}
	}
	if s.GrossLoss.IsPositive() {
		s.ProfitFactor = s.GrossProfit.DivRound(s.GrossLoss, 4)
	}
	return s
}
