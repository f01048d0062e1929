// Package journal persists the ledger: the account, open positions and lots,
// the signal log and account snapshots. Memory and SQLite implement the
// same ledger.Store contract.
package journal

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rustyeddy/ledger/ledger"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("journal: transaction already committed or rolled back")

// Open returns the store named by kind ("sqlite" or "memory").
func Open(kind, path string) (ledger.Store, error) {
	switch kind {
	case "sqlite":
		return NewSQLite(path)
	case "memory", "":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown journal type %q", kind)
}

// tail keeps the last n elements of xs; n <= 0 keeps everything.
func tail[T any](xs []T, n int) []T {
	if n <= 0 || len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

func matchSignal(s ledger.Signal, f ledger.SignalFilter) bool {
	if f.Symbol != "" && s.Symbol != f.Symbol {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

func sortSignals(xs []ledger.Signal) {
	sort.Slice(xs, func(i, j int) bool { return xs[i].ID < xs[j].ID })
}
