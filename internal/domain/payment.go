package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment is the settled charge for a reservation. A reservation owns at
// most one payment; replaying a settle returns the stored record unchanged.
type Payment struct {
	TxID          uuid.UUID
	ReservationID uuid.UUID
	AmountCents   int64
	SettledAt     time.Time
}
