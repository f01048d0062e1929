package journal

import (
	"context"
	"sort"
	"sync"

	"github.com/rustyeddy/ledger/ledger"
)

// Memory keeps the ledger in process. A transaction works on a private copy
// and holds the store lock until it commits or rolls back, so writers are
// serialized the same way SQLite serializes them.
type Memory struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	account   *ledger.Account
	positions map[string]ledger.Position
	lots      map[string]ledger.Lot
	lotSeq    int64
	signals   map[string]ledger.Signal
	snapshots []ledger.AccountSnapshot
}

func NewMemory() *Memory {
	return &Memory{state: memState{
		positions: make(map[string]ledger.Position),
		lots:      make(map[string]ledger.Lot),
		signals:   make(map[string]ledger.Signal),
	}}
}

func (s memState) clone() memState {
	out := memState{
		lotSeq:    s.lotSeq,
		positions: make(map[string]ledger.Position, len(s.positions)),
		lots:      make(map[string]ledger.Lot, len(s.lots)),
		signals:   make(map[string]ledger.Signal, len(s.signals)),
		snapshots: append([]ledger.AccountSnapshot(nil), s.snapshots...),
	}
	if s.account != nil {
		a := *s.account
		out.account = &a
	}
	for k, v := range s.positions {
		out.positions[k] = v
	}
	for k, v := range s.lots {
		out.lots[k] = v
	}
	for k, v := range s.signals {
		v.Offsets = append([]string(nil), v.Offsets...)
		out.signals[k] = v
	}
	return out
}

func (m *Memory) Begin(ctx context.Context) (ledger.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	return &memTx{m: m, st: m.state.clone()}, nil
}

func (m *Memory) Close() error { return nil }

type memTx struct {
	m    *Memory
	st   memState
	done bool
}

func (t *memTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.m.state = t.st
	t.m.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.m.mu.Unlock()
	return nil
}

func (t *memTx) Account(ctx context.Context) (ledger.Account, bool, error) {
	if t.done {
		return ledger.Account{}, false, ErrTxDone
	}
	if t.st.account == nil {
		return ledger.Account{}, false, nil
	}
	return *t.st.account, true, nil
}

func (t *memTx) PutAccount(ctx context.Context, a ledger.Account) error {
	if t.done {
		return ErrTxDone
	}
	t.st.account = &a
	return nil
}

func (t *memTx) Position(ctx context.Context, symbol string) (ledger.Position, bool, error) {
	if t.done {
		return ledger.Position{}, false, ErrTxDone
	}
	p, ok := t.st.positions[symbol]
	return p, ok, nil
}

func (t *memTx) Positions(ctx context.Context) ([]ledger.Position, error) {
	if t.done {
		return nil, ErrTxDone
	}
	out := make([]ledger.Position, 0, len(t.st.positions))
	for _, p := range t.st.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (t *memTx) PutPosition(ctx context.Context, p ledger.Position) error {
	if t.done {
		return ErrTxDone
	}
	t.st.positions[p.Symbol] = p
	return nil
}

func (t *memTx) DeletePosition(ctx context.Context, symbol string) error {
	if t.done {
		return ErrTxDone
	}
	delete(t.st.positions, symbol)
	return nil
}

func (t *memTx) Lots(ctx context.Context, symbol string, side ledger.Side) ([]ledger.Lot, error) {
	if t.done {
		return nil, ErrTxDone
	}
	var out []ledger.Lot
	for _, l := range t.st.lots {
		if l.Symbol == symbol && l.Side == side {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (t *memTx) Lot(ctx context.Context, signalID string) (ledger.Lot, bool, error) {
	if t.done {
		return ledger.Lot{}, false, ErrTxDone
	}
	l, ok := t.st.lots[signalID]
	return l, ok, nil
}

func (t *memTx) AddLot(ctx context.Context, l ledger.Lot) (ledger.Lot, error) {
	if t.done {
		return ledger.Lot{}, ErrTxDone
	}
	t.st.lotSeq++
	l.Seq = t.st.lotSeq
	t.st.lots[l.SignalID] = l
	return l, nil
}

func (t *memTx) UpdateLot(ctx context.Context, l ledger.Lot) error {
	if t.done {
		return ErrTxDone
	}
	t.st.lots[l.SignalID] = l
	return nil
}

func (t *memTx) DeleteLot(ctx context.Context, signalID string) error {
	if t.done {
		return ErrTxDone
	}
	delete(t.st.lots, signalID)
	return nil
}

func (t *memTx) Signal(ctx context.Context, id string) (ledger.Signal, bool, error) {
	if t.done {
		return ledger.Signal{}, false, ErrTxDone
	}
	s, ok := t.st.signals[id]
	return s, ok, nil
}

func (t *memTx) Signals(ctx context.Context, f ledger.SignalFilter) ([]ledger.Signal, error) {
	if t.done {
		return nil, ErrTxDone
	}
	var out []ledger.Signal
	for _, s := range t.st.signals {
		if matchSignal(s, f) {
			out = append(out, s)
		}
	}
	sortSignals(out)
	return tail(out, f.Limit), nil
}

func (t *memTx) InsertSignal(ctx context.Context, s ledger.Signal) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.st.signals[s.ID]; ok {
		return &duplicateError{id: s.ID}
	}
	t.st.signals[s.ID] = s
	return nil
}

func (t *memTx) UpdateSignal(ctx context.Context, s ledger.Signal) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.st.signals[s.ID]; !ok {
		return &missingError{id: s.ID}
	}
	t.st.signals[s.ID] = s
	return nil
}

func (t *memTx) DeleteSignal(ctx context.Context, id string) error {
	if t.done {
		return ErrTxDone
	}
	delete(t.st.signals, id)
	return nil
}

func (t *memTx) RecordSnapshot(ctx context.Context, s ledger.AccountSnapshot) error {
	if t.done {
		return ErrTxDone
	}
	t.st.snapshots = append(t.st.snapshots, s)
	return nil
}

func (t *memTx) Snapshots(ctx context.Context, limit int) ([]ledger.AccountSnapshot, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return append([]ledger.AccountSnapshot(nil), tail(t.st.snapshots, limit)...), nil
}

type duplicateError struct{ id string }

func (e *duplicateError) Error() string { return "signal " + e.id + " already recorded" }

type missingError struct{ id string }

func (e *missingError) Error() string { return "signal " + e.id + " not recorded" }
