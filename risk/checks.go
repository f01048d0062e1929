package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Codes returns the violation codes joined with commas.
func (d Decision) Codes() string {
	codes := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		codes = append(codes, v.Code)
	}
	return strings.Join(codes, ",")
}

func (d Decision) Error() string {
	msgs := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		msgs = append(msgs, v.Code+": "+v.Msg)
	}
	return strings.Join(msgs, "; ")
}

func Evaluate(p Policy, intent Intent, acct AccountSnapshot) Decision {
	d := Decision{Allowed: true}

	if p.MaxOpenPositions > 0 && !acct.HasPosition && acct.OpenPositions >= p.MaxOpenPositions {
		d.add("TOO_MANY_OPEN_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d", acct.OpenPositions, p.MaxOpenPositions))
	}

	debit := intent.Reserve.Add(intent.Commission)
	if p.RequireAvailable && acct.AvailableBalance.LessThan(debit) {
		d.add("INSUFFICIENT_AVAILABLE",
			fmt.Sprintf("%s needs %s, available %s", intent.Symbol, debit.StringFixed(2), acct.AvailableBalance.StringFixed(2)))
	}

	if p.MaxPositionCostPct.IsPositive() {
		balance := acct.CurrentBalance.Sub(intent.Commission)
		cost := acct.PositionCost.Add(intent.Reserve)
		if !balance.IsPositive() {
			d.add("POSITION_COST_TOO_HIGH", "no balance left to carry positions")
		} else if pct := cost.Div(balance); pct.GreaterThan(p.MaxPositionCostPct) {
			hundred := decimal.NewFromInt(100)
			d.add("POSITION_COST_TOO_HIGH",
				fmt.Sprintf("position cost %s%% exceeds max %s%%",
					pct.Mul(hundred).StringFixed(2), p.MaxPositionCostPct.Mul(hundred).StringFixed(2)))
		}
	}

	return d
}
