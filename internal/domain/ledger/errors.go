package ledger

import "errors"

var (
	// ErrInsufficientCredits is returned when a negative grant would drive
	// the balance below zero. Consume signals insufficiency through its
	// boolean result instead.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount is returned when amount is zero, or negative for a
	// transaction type that does not allow corrections
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidTxType is returned for unknown transaction types
	ErrInvalidTxType = errors.New("invalid transaction type")

	// ErrReferenceConflict is returned when a reference was already recorded
	// with a different amount
	ErrReferenceConflict = errors.New("reference already used with a different amount")

	ErrInternal = errors.New("internal error")
)
