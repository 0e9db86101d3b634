package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusPaid      ReservationStatus = "paid"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// IsTerminal reports whether no further transition is permitted.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusPaid || s == ReservationStatusExpired || s == ReservationStatusCancelled
}

// ReservationItem is one tier's share of a reservation. UnitPriceCents is
// frozen at reservation time; payment never re-prices.
type ReservationItem struct {
	TierID         uuid.UUID
	Quantity       int
	UnitPriceCents int
}

// Reservation holds tickets for a limited time until paid, cancelled or
// expired. Items are kept sorted by tier ID.
type Reservation struct {
	ID             uuid.UUID
	EventID        uuid.UUID
	ActorID        uuid.UUID
	Items          []ReservationItem
	Status         ReservationStatus
	ExpiresAt      time.Time
	IdempotencyKey string
	CreatedAt      time.Time
}

// TotalCents is the charge amount, computed from the frozen per-item prices.
func (r Reservation) TotalCents() int64 {
	var total int64
	for _, item := range r.Items {
		total += int64(item.Quantity) * int64(item.UnitPriceCents)
	}
	return total
}

// IsExpired reports whether a still-pending reservation is past its deadline.
// The stored status flips only when the transition is durably committed.
func (r Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationStatusPending && EffectiveStatus(r.Status, r.ExpiresAt, now) == ReservationStatusExpired
}

// EffectiveStatus is the status as a reader should see it: a pending
// reservation past its deadline reads as expired even before the sweeper
// commits the transition. Both the sweeper and the lazy read/write paths
// evaluate this same rule.
func EffectiveStatus(status ReservationStatus, expiresAt, now time.Time) ReservationStatus {
	if status == ReservationStatusPending && !expiresAt.After(now) {
		return ReservationStatusExpired
	}
	return status
}

// EffectiveStatus resolves the reservation's status against the clock.
func (r Reservation) EffectiveStatus(now time.Time) ReservationStatus {
	return EffectiveStatus(r.Status, r.ExpiresAt, now)
}

// SameSelection reports whether the given items match the reservation's,
// ignoring frozen prices. Used to detect idempotency-key reuse with a
// different payload.
func (r Reservation) SameSelection(items []ReservationItem) bool {
	if len(items) != len(r.Items) {
		return false
	}
	for i, item := range items {
		if r.Items[i].TierID != item.TierID || r.Items[i].Quantity != item.Quantity {
			return false
		}
	}
	return true
}

// ReservationSummary is the listing view joined with the event name.
type ReservationSummary struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	EventName string
	ExpiresAt time.Time
	Status    ReservationStatus
}
