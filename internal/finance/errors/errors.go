package errors

import "errors"

var (
	ErrNotFound = errors.New("finance transaction not found")

	ErrInvalidID = errors.New("invalid finance transaction ID format")

	ErrNoPendingEntry = errors.New("no matching pending ledger entry")
)
