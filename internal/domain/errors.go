package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Specific errors wrap one of the four classes so callers
// can branch with errors.Is on either level.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrTransactionAborted = errors.New("transaction aborted")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidInput       = errors.New("invalid input")
)

var (
	ErrItemNotFound           = fmt.Errorf("item %w", ErrNotFound)
	ErrTicketNotFound         = fmt.Errorf("ticket %w", ErrNotFound)
	ErrAlreadyClaimedOrServed = fmt.Errorf("ticket already claimed or served: %w", ErrConflict)
	ErrAlreadyServed          = fmt.Errorf("ticket already served: %w", ErrConflict)
)

// Aborted wraps a storage failure so it matches ErrTransactionAborted
// while keeping the cause inspectable.
func Aborted(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransactionAborted, op, err)
}
