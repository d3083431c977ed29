package myerrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindRateLimit       Kind = "rate_limit"
	KindPermission      Kind = "permission"
	KindNotFound        Kind = "not_found"
	KindInvalidState    Kind = "invalid_state"
	KindAlreadyAccepted Kind = "already_accepted"
	KindFulfilled       Kind = "fulfilled"
	KindCompatibility   Kind = "compatibility"
	KindCooldown        Kind = "cooldown"
	KindConflict        Kind = "conflict"
)

var (
	ErrDBConnClosed    = errors.New("failed to connect to db")
	ErrDBConnClosedMsg = errors.New("internal error, please try again later")

	ErrValidation      = &Error{Kind: KindValidation}
	ErrRateLimit       = &Error{Kind: KindRateLimit}
	ErrPermission      = &Error{Kind: KindPermission}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrAlreadyAccepted = &Error{Kind: KindAlreadyAccepted}
	ErrFulfilled       = &Error{Kind: KindFulfilled}
	ErrCompatibility   = &Error{Kind: KindCompatibility}
	ErrCooldown        = &Error{Kind: KindCooldown}
	ErrConflict        = &Error{Kind: KindConflict}
)

// Error is a domain failure surfaced to callers. errors.Is matches on Kind only,
// so errors.Is(err, ErrFulfilled) holds for any fulfilled error.
type Error struct {
	Kind          Kind
	Reason        string
	RemainingDays int
	Err           error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	case e.Reason != "":
		return e.Reason
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

func Cooldown(remainingDays int) *Error {
	return &Error{
		Kind:          KindCooldown,
		Reason:        fmt.Sprintf("donor is in cooldown, wait %d more days", remainingDays),
		RemainingDays: remainingDays,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func RemainingDays(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.RemainingDays
	}
	return 0
}
