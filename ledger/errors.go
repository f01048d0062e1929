package ledger

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindAccountNotFound
	KindInsufficientPosition
	KindUnknownInstrument
	KindPersistence
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation error"
	case KindAccountNotFound:
		return "account not found"
	case KindInsufficientPosition:
		return "insufficient position"
	case KindUnknownInstrument:
		return "unknown instrument"
	case KindPersistence:
		return "persistence error"
	case KindNotFound:
		return "not found"
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Error is the typed error returned by every ledger operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so callers can write
// errors.Is(err, ledger.ErrInsufficientPosition).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrAccountNotFound      = &Error{Kind: KindAccountNotFound}
	ErrInsufficientPosition = &Error{Kind: KindInsufficientPosition}
	ErrUnknownInstrument    = &Error{Kind: KindUnknownInstrument}
	ErrPersistence          = &Error{Kind: KindPersistence}
	ErrNotFound             = &Error{Kind: KindNotFound}
)

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsRetryable reports whether err is a store failure that left nothing
// applied. Validation and position errors are permanent.
func IsRetryable(err error) bool {
	return KindOf(err) == KindPersistence
}

func validationf(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

func insufficientf(op, format string, args ...any) error {
	return &Error{Kind: KindInsufficientPosition, Op: op, Err: fmt.Errorf(format, args...)}
}

func persistence(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}
