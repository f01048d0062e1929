package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SignalType string

const (
	BuyOpen   SignalType = "BUY_OPEN"
	SellOpen  SignalType = "SELL_OPEN"
	BuyClose  SignalType = "BUY_CLOSE"
	SellClose SignalType = "SELL_CLOSE"
)

// ParseSignalType accepts any case and surrounding whitespace.
func ParseSignalType(s string) (SignalType, error) {
	t := SignalType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", validationf("parse signal type", "unknown signal type %q", s)
	}
	return t, nil
}

func (t SignalType) Valid() bool {
	switch t {
	case BuyOpen, SellOpen, BuyClose, SellClose:
		return true
	}
	return false
}

// IsOpen reports whether the signal adds exposure.
func (t SignalType) IsOpen() bool {
	return t == BuyOpen || t == SellOpen
}

// Side is the side of the exposure a signal opens or closes.
// BUY_CLOSE offsets a SELL_OPEN, so it closes the short side.
func (t SignalType) Side() Side {
	switch t {
	case BuyOpen, SellClose:
		return Long
	default:
		return Short
	}
}

type SignalStatus string

const (
	StatusOpen          SignalStatus = "OPEN"
	StatusPartialClosed SignalStatus = "PARTIAL_CLOSED"
	StatusClosed        SignalStatus = "CLOSED"
)

func ParseSignalStatus(s string) (SignalStatus, error) {
	st := SignalStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusOpen, StatusPartialClosed, StatusClosed:
		return st, nil
	}
	return "", validationf("parse signal status", "unknown signal status %q", s)
}

// Unresolved reports whether an opening signal still has exposure behind it.
func (s SignalStatus) Unresolved() bool {
	return s == StatusOpen || s == StatusPartialClosed
}

type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// PnL returns the realized profit of closing qty at closePrice against an
// average entry of avg.
func (s Side) PnL(avg, closePrice, qty decimal.Decimal, multiplier int) decimal.Decimal {
	move := closePrice.Sub(avg)
	if s == Short {
		move = avg.Sub(closePrice)
	}
	return move.Mul(qty).Mul(decimal.NewFromInt(int64(multiplier)))
}

type PositionStatus string

const (
	PositionOpen          PositionStatus = "open"
	PositionPartialClosed PositionStatus = "partial_closed"
)

// Signal is a trade intent plus its settlement outcome. Only the status,
// close and profit fields change after it is recorded.
type Signal struct {
	ID             string           `json:"id"`
	Time           time.Time        `json:"time"`
	Symbol         string           `json:"symbol"`
	Type           SignalType       `json:"type"`
	Price          decimal.Decimal  `json:"price"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Status         SignalStatus     `json:"status"`
	Reason         string           `json:"reason,omitempty"`
	CloseDate      *time.Time       `json:"close_date,omitempty"`
	ClosePrice     *decimal.Decimal `json:"close_price,omitempty"`
	RealizedProfit decimal.Decimal  `json:"realized_profit"`
	Commission     decimal.Decimal  `json:"commission"`

	// Offsets lists the opening signals whose lots a closing signal consumed.
	Offsets []string `json:"offsets,omitempty"`
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %s %s %s@%s [%s]", s.ID, s.Symbol, s.Type, s.Quantity, s.Price, s.Status)
}

// Draft is what a caller submits; the ledger fills in everything else.
type Draft struct {
	Time     time.Time
	Symbol   string
	Type     SignalType
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Reason   string
}

// Patch is an administrative correction. Nil fields are left alone.
type Patch struct {
	Status     *SignalStatus
	Reason     *string
	ClosePrice *decimal.Decimal
	CloseDate  *time.Time
}

type Position struct {
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Reserved  decimal.Decimal `json:"reserved"`
	Status    PositionStatus  `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Lot is the unconsumed remainder of one opening signal.
type Lot struct {
	SignalID  string
	Seq       int64
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Remaining decimal.Decimal
	OpenedAt  time.Time
}

type Account struct {
	InitialBalance   decimal.Decimal `json:"initial_balance"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	TotalCommission  decimal.Decimal `json:"total_commission"`
	PositionCost     decimal.Decimal `json:"position_cost"`
	PositionQuantity decimal.Decimal `json:"position_quantity"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AccountSnapshot is the account state right after a settlement.
type AccountSnapshot struct {
	Time     time.Time
	SignalID string
	Account  Account
}

type SignalFilter struct {
	Symbol string
	Status SignalStatus
	Limit  int
}
