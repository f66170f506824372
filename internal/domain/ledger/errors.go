package ledger

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the ledger services wraps exactly one of these.
var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConflict            = errors.New("conflict")
)

// Error carries a caller-facing message and unwraps to its kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// Repository errors.
var (
	ErrCycleNotFound       error = &Error{Kind: ErrNotFound, Msg: "Cycle not found"}
	ErrTransactionNotFound error = &Error{Kind: ErrNotFound, Msg: "No transactions found in this cycle"}
	ErrDuplicateCycleName  error = &Error{Kind: ErrConflict, Msg: "A cycle with this name already exists"}
	ErrCycleChanged        error = &Error{Kind: ErrConflict, Msg: "The cycle changed while undoing, please retry"}
)

func Validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

func InsufficientBalancef(format string, args ...any) error {
	return &Error{Kind: ErrInsufficientBalance, Msg: fmt.Sprintf(format, args...)}
}
