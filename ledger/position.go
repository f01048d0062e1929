package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PositionBook owns per-symbol exposure inside one transaction.
type PositionBook struct {
	tx  Tx
	now func() time.Time
}

func NewPositionBook(tx Tx, now func() time.Time) *PositionBook {
	if now == nil {
		now = time.Now
	}
	return &PositionBook{tx: tx, now: now}
}

func (b *PositionBook) Get(ctx context.Context, symbol string) (Position, bool, error) {
	return b.tx.Position(ctx, symbol)
}

// ApplyOpen creates the position or folds qty@price into its weighted
// average. reserve is the cash or margin set aside for the new quantity.
func (b *PositionBook) ApplyOpen(ctx context.Context, symbol string, side Side, price, qty, reserve decimal.Decimal) (Position, error) {
	const op = "position open"

	if !qty.IsPositive() {
		return Position{}, validationf(op, "quantity must be positive, got %s", qty)
	}

	now := b.now().UTC()
	pos, ok, err := b.tx.Position(ctx, symbol)
	if err != nil {
		return Position{}, err
	}

	if !ok {
		pos = Position{
			Symbol:    symbol,
			Side:      side,
			AvgPrice:  price,
			Quantity:  qty,
			Reserved:  reserve,
			Status:    PositionOpen,
			CreatedAt: now,
			UpdatedAt: now,
		}
	} else {
		if pos.Side != side {
			return Position{}, validationf(op, "%s holds a %s position; close it before opening %s", symbol, pos.Side, side)
		}
		total := pos.Quantity.Add(qty)
		pos.AvgPrice = pos.AvgPrice.Mul(pos.Quantity).Add(price.Mul(qty)).Div(total)
		pos.Quantity = total
		pos.Reserved = pos.Reserved.Add(reserve)
		pos.UpdatedAt = now
	}

	if err := b.tx.PutPosition(ctx, pos); err != nil {
		return Position{}, err
	}
	return pos, nil
}

// ApplyClose takes qty off the side position of symbol. It returns the
// position after the close, whether it is still open, and the share of the
// reserve released by the closed quantity. The position is removed when its
// quantity reaches zero.
func (b *PositionBook) ApplyClose(ctx context.Context, symbol string, side Side, qty decimal.Decimal) (Position, bool, decimal.Decimal, error) {
	const op = "position close"

	if !qty.IsPositive() {
		return Position{}, false, decimal.Zero, validationf(op, "quantity must be positive, got %s", qty)
	}

	pos, ok, err := b.tx.Position(ctx, symbol)
	if err != nil {
		return Position{}, false, decimal.Zero, err
	}
	if !ok {
		return Position{}, false, decimal.Zero, insufficientf(op, "no position in %s", symbol)
	}
	if pos.Side != side {
		return Position{}, false, decimal.Zero, insufficientf(op, "no %s position in %s (holding %s)", side, symbol, pos.Side)
	}
	if pos.Quantity.LessThan(qty) {
		return Position{}, false, decimal.Zero, insufficientf(op, "close %s %s exceeds held %s", qty, symbol, pos.Quantity)
	}

	if pos.Quantity.Equal(qty) {
		released := pos.Reserved
		if err := b.tx.DeletePosition(ctx, symbol); err != nil {
			return Position{}, false, decimal.Zero, err
		}
		pos.Quantity = decimal.Zero
		pos.Reserved = decimal.Zero
		pos.UpdatedAt = b.now().UTC()
		return pos, false, released, nil
	}

	released := pos.Reserved.Mul(qty).Div(pos.Quantity)
	pos.Quantity = pos.Quantity.Sub(qty)
	pos.Reserved = pos.Reserved.Sub(released)
	pos.Status = PositionPartialClosed
	pos.UpdatedAt = b.now().UTC()

	if err := b.tx.PutPosition(ctx, pos); err != nil {
		return Position{}, false, decimal.Zero, err
	}
	return pos, true, released, nil
}
