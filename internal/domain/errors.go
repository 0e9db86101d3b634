package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrEventNotFound          = errors.New("event not found")
	ErrTierNotFound           = errors.New("ticket tier not found")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrReservationExpired     = errors.New("reservation is expired")
	ErrReservationCancelled   = errors.New("reservation is cancelled")
	ErrAlreadyPaid            = errors.New("reservation is already paid")
	ErrEmptySelection         = errors.New("ticket selection is empty")
	ErrInvalidQuantity        = errors.New("ticket quantity must be positive")
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrActorRequired          = errors.New("actor id required")
	ErrNotOwner               = errors.New("reservation belongs to another actor")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with a different selection")
	ErrEventNameRequired      = errors.New("event name required")
	ErrInvalidCard            = errors.New("invalid card number")
	ErrPaymentDeclined        = errors.New("payment authorization failed")

	// ErrDuplicateReservation is raised by storage when the (actor, key)
	// uniqueness constraint fires; callers re-read and replay the winner.
	ErrDuplicateReservation = errors.New("reservation already exists for idempotency key")
)

// InsufficientTicketsError reports which tier could not cover the requested
// quantity. No partial acquisition survives it; the caller may retry with
// reduced quantities under a new idempotency key.
type InsufficientTicketsError struct {
	TierID uuid.UUID
}

func NewInsufficientTicketsError(tierID uuid.UUID) *InsufficientTicketsError {
	return &InsufficientTicketsError{TierID: tierID}
}

func (err *InsufficientTicketsError) Error() string {
	return fmt.Sprintf("not enough tickets available of tier %q", err.TierID)
}

func IsInsufficientTicketsError(err error) bool {
	e := &InsufficientTicketsError{}
	return errors.As(err, &e)
}
