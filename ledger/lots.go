package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Matching decides which open lot a close consumes first.
type Matching string

const (
	// LIFO consumes the most recently opened lot first.
	LIFO Matching = "lifo"
	// FIFO consumes the oldest lot first.
	FIFO Matching = "fifo"
)

func ParseMatching(s string) (Matching, error) {
	switch m := Matching(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return LIFO, nil
	case LIFO, FIFO:
		return m, nil
	}
	return "", fmt.Errorf("unknown lot matching %q (want lifo or fifo)", s)
}

// consumeLots takes qty off the open lots of symbol/side in matching order
// and moves each touched opening signal to PARTIAL_CLOSED or CLOSED. It
// returns the ids of the opening signals it touched.
func consumeLots(ctx context.Context, tx Tx, m Matching, symbol string, side Side, qty, price decimal.Decimal, at time.Time) ([]string, error) {
	const op = "consume lots"

	lots, err := tx.Lots(ctx, symbol, side)
	if err != nil {
		return nil, err
	}
	if m != FIFO {
		for i, j := 0, len(lots)-1; i < j; i, j = i+1, j-1 {
			lots[i], lots[j] = lots[j], lots[i]
		}
	}

	var touched []string
	left := qty
	for _, lot := range lots {
		if !left.IsPositive() {
			break
		}
		take := decimal.Min(left, lot.Remaining)
		lot.Remaining = lot.Remaining.Sub(take)
		left = left.Sub(take)

		if err := settleLot(ctx, tx, lot, price, at); err != nil {
			return nil, err
		}
		touched = append(touched, lot.SignalID)
	}

	if left.IsPositive() {
		return nil, insufficientf(op, "open lots of %s %s are short by %s", side, symbol, left)
	}
	return touched, nil
}

// settleLot stores the lot's new remainder and updates its opening signal.
func settleLot(ctx context.Context, tx Tx, lot Lot, price decimal.Decimal, at time.Time) error {
	open, ok, err := tx.Signal(ctx, lot.SignalID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("lot %s has no opening signal", lot.SignalID)
	}

	if lot.Remaining.IsPositive() {
		if err := tx.UpdateLot(ctx, lot); err != nil {
			return err
		}
		open.Status = StatusPartialClosed
	} else {
		if err := tx.DeleteLot(ctx, lot.SignalID); err != nil {
			return err
		}
		open.Status = StatusClosed
		p := price
		d := at
		open.ClosePrice = &p
		open.CloseDate = &d
	}
	return tx.UpdateSignal(ctx, open)
}
