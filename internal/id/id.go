// Package id mints signal ids. Ids are ULIDs stamped with the signal's own
// time, so the signal log sorts by when a trade happened even when history
// is replayed long after the fact.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// InRange reports whether t can be carried by an id: from the Unix epoch up
// to the largest ULID timestamp.
func InRange(t time.Time) bool {
	ms := t.UnixMilli()
	return ms >= 0 && uint64(ms) <= ulid.MaxTime()
}

// At returns an id carrying t. Ids minted for the same millisecond keep
// increasing. A zero t uses the current time.
func At(t time.Time) (string, error) {
	if t.IsZero() {
		t = time.Now()
	}
	if !InRange(t) {
		return "", fmt.Errorf("id: time %s outside the ulid range", t.UTC().Format(time.RFC3339))
	}

	mu.Lock()
	defer mu.Unlock()

	v, err := ulid.New(ulid.Timestamp(t.UTC()), entropy)
	if err != nil {
		return "", fmt.Errorf("id: %w", err)
	}
	return v.String(), nil
}

// Time recovers the timestamp an id was minted with.
func Time(s string) (time.Time, error) {
	v, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(v.Time()).UTC(), nil
}
