package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/x1unix/thoughtly-ticket-booking/internal/clock"
	"github.com/x1unix/thoughtly-ticket-booking/internal/domain"
)

func TestCatalogService(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("creates an event with tiers", func(t *testing.T) {
		store := newFakeStore()
		svc := NewCatalogService(store, clock.NewFixed(now))

		created, err := svc.CreateEvent(context.Background(), CreateEventInput{
			Name: "Summer Fest",
			Tiers: []CreateTierInput{
				{Name: "GA", PriceCents: 4500, TotalCount: 200},
				{Name: "VIP", PriceCents: 12000, TotalCount: 20},
			},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if created.Event.Name != "Summer Fest" {
			t.Fatalf("unexpected event %+v", created.Event)
		}
		if len(created.TierIDs) != 2 || created.TierIDs["GA"] == uuid.Nil {
			t.Fatalf("expected tier IDs by name, got %v", created.TierIDs)
		}

		tiers, err := svc.ListTiers(context.Background(), created.Event.ID)
		if err != nil {
			t.Fatalf("list tiers: %v", err)
		}
		if len(tiers) != 2 {
			t.Fatalf("expected 2 tiers, got %d", len(tiers))
		}
		if tiers[0].PriceCents > tiers[1].PriceCents {
			t.Fatalf("expected tiers ordered by price, got %+v", tiers)
		}
		if tiers[0].AvailableCount != 200 {
			t.Fatalf("expected full availability, got %d", tiers[0].AvailableCount)
		}
	})

	t.Run("rejects nameless events", func(t *testing.T) {
		svc := NewCatalogService(newFakeStore(), clock.NewFixed(now))
		if _, err := svc.CreateEvent(context.Background(), CreateEventInput{}); !errors.Is(err, domain.ErrEventNameRequired) {
			t.Fatalf("expected ErrEventNameRequired, got %v", err)
		}
	})

	t.Run("unknown event on tier listing", func(t *testing.T) {
		svc := NewCatalogService(newFakeStore(), clock.NewFixed(now))
		if _, err := svc.ListTiers(context.Background(), uuid.New()); !errors.Is(err, domain.ErrEventNotFound) {
			t.Fatalf("expected ErrEventNotFound, got %v", err)
		}
	})

	t.Run("availability excludes live holds and sales", func(t *testing.T) {
		eventID := uuid.New()
		tierID := uuid.New()
		store := newFakeStore(domain.TicketTier{ID: tierID, EventID: eventID, Name: "GA", PriceCents: 4500, TotalCount: 100})

		add := func(status domain.ReservationStatus, qty int, expiresAt time.Time) {
			id := uuid.New()
			store.reservations[id] = domain.Reservation{
				ID:        id,
				EventID:   eventID,
				ActorID:   uuid.New(),
				Items:     []domain.ReservationItem{{TierID: tierID, Quantity: qty}},
				Status:    status,
				ExpiresAt: expiresAt,
			}
		}
		add(domain.ReservationStatusPending, 10, now.Add(5*time.Minute))  // live hold
		add(domain.ReservationStatusPending, 7, now.Add(-5*time.Minute))  // overdue, frees seats
		add(domain.ReservationStatusPaid, 20, now.Add(-30*time.Minute))   // sold
		add(domain.ReservationStatusCancelled, 5, now.Add(5*time.Minute)) // released

		svc := NewCatalogService(store, clock.NewFixed(now))
		tiers, err := svc.ListTiers(context.Background(), eventID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tiers) != 1 {
			t.Fatalf("expected 1 tier, got %d", len(tiers))
		}
		if tiers[0].AvailableCount != 70 {
			t.Fatalf("expected 70 available, got %d", tiers[0].AvailableCount)
		}
	})
}
