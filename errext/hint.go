package errext

import (
	"errors"
	"fmt"
)

// HasHint is a wrapper around an error with an attached user hint. Hints tell
// the user how to fix the problem, e.g. which Config field to set instead of
// a rejected browser flag.
type HasHint interface {
	error
	Hint() string
}

// WithHint attaches a hint to err. A nil err stays nil. If err already had a
// hint, the new one wraps it as "new hint (old hint)".
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return withHint{err, hint}
}

// Hintf is WithHint with a formatted hint.
func Hintf(err error, format string, args ...any) error {
	return WithHint(err, fmt.Sprintf(format, args...))
}

type withHint struct {
	error
	hint string
}

func (wh withHint) Unwrap() error {
	return wh.error
}

func (wh withHint) Hint() string {
	hint := wh.hint
	var oldhint HasHint
	if errors.As(wh.error, &oldhint) {
		hint = hint + " (" + oldhint.Hint() + ")"
	}

	return hint
}

var _ HasHint = withHint{}
