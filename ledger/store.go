package ledger

import "context"

// Store hands out transactions over the persisted ledger state.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is one unit of work. Every read and write of a settlement goes through
// the same Tx. Commit applies all writes or none and always ends the Tx;
// Rollback after Commit is a no-op.
type Tx interface {
	Account(ctx context.Context) (Account, bool, error)
	PutAccount(ctx context.Context, a Account) error

	Position(ctx context.Context, symbol string) (Position, bool, error)
	Positions(ctx context.Context) ([]Position, error)
	PutPosition(ctx context.Context, p Position) error
	DeletePosition(ctx context.Context, symbol string) error

	// Lots returns the open lots of symbol on side ordered by Seq ascending.
	Lots(ctx context.Context, symbol string, side Side) ([]Lot, error)
	Lot(ctx context.Context, signalID string) (Lot, bool, error)
	// AddLot stores a new lot and returns it with Seq assigned.
	AddLot(ctx context.Context, l Lot) (Lot, error)
	UpdateLot(ctx context.Context, l Lot) error
	DeleteLot(ctx context.Context, signalID string) error

	Signal(ctx context.Context, id string) (Signal, bool, error)
	Signals(ctx context.Context, f SignalFilter) ([]Signal, error)
	InsertSignal(ctx context.Context, s Signal) error
	UpdateSignal(ctx context.Context, s Signal) error
	DeleteSignal(ctx context.Context, id string) error

	RecordSnapshot(ctx context.Context, s AccountSnapshot) error
	// Snapshots returns the newest limit snapshots, oldest first. limit <= 0
	// returns all of them.
	Snapshots(ctx context.Context, limit int) ([]AccountSnapshot, error)

	Commit() error
	Rollback() error
}
