package http

import (
	"time"

	"github.com/google/uuid"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type EventResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
}

type CreateTierParams struct {
	PriceCents   int `json:"priceCents"`
	TicketsCount int `json:"ticketsCount"`
}

type EventCreateRequest struct {
	EventName string `json:"name"`

	Tiers map[string]CreateTierParams `json:"tiers"`
}

type EventCreateResponse struct {
	EventID uuid.UUID            `json:"eventId"`
	Tiers   map[string]uuid.UUID `json:"tiers"`
}

type TierResponse struct {
	TierID         uuid.UUID `json:"tier_id"`
	Name           string    `json:"name"`
	PriceCents     int       `json:"priceCents"`
	AvailableCount int       `json:"availableCount"`
}

type ListTiersResponse struct {
	Tiers []TierResponse `json:"tiers"`
}

type ReserveTicketsRequest struct {
	IdempotencyKey string             `json:"idempotencyKey"`
	ActorID        uuid.UUID          `json:"actorID"`
	TicketsCount   map[uuid.UUID]uint `json:"ticketsCount"`
}

type ReserveTicketsResponse struct {
	ReservationID uuid.UUID `json:"reservationID"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type ReservationResponse struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"eventID"`
	EventName string    `json:"eventName"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsPaid    bool      `json:"isPaid"`
}

type ListReservationsResponse struct {
	Reservations []ReservationResponse `json:"reservations"`
}

type PaymentRequest struct {
	ReservationID uuid.UUID `json:"reservationID"`
	ActorID       uuid.UUID `json:"actorID"`
	CardNumber    string    `json:"cardNumber"`
}

type PaymentResponse struct {
	TxID        uuid.UUID `json:"txId"`
	AmountCents int64     `json:"amountCents"`
}

type CancelReservationRequest struct {
	ActorID uuid.UUID `json:"actorID"`
}
