package domain

import "github.com/google/uuid"

// Event represents a ticketed event. The catalog owns events; the booking
// core only references them by ID.
type Event struct {
	ID   uuid.UUID
	Name string
}

// TicketTier is a priced bucket of identical tickets within one event.
type TicketTier struct {
	ID         uuid.UUID
	EventID    uuid.UUID
	Name       string
	PriceCents int
	TotalCount int
}

// TierSummary is the storefront view of a tier: price plus how many tickets
// can still be reserved right now (live holds and sales subtracted).
type TierSummary struct {
	TierID         uuid.UUID
	Name           string
	PriceCents     int
	AvailableCount int
}
