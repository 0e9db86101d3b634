package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestReservation_TotalCents(t *testing.T) {
	r := Reservation{
		Items: []ReservationItem{
			{TierID: uuid.New(), Quantity: 2, UnitPriceCents: 100_00},
			{TierID: uuid.New(), Quantity: 3, UnitPriceCents: 10_00},
		},
	}
	if got := r.TotalCents(); got != 230_00 {
		t.Fatalf("expected total 23000, got %d", got)
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    ReservationStatus
		expiresAt time.Time
		want      ReservationStatus
	}{
		{"pending before deadline", ReservationStatusPending, now.Add(time.Minute), ReservationStatusPending},
		{"pending at deadline", ReservationStatusPending, now, ReservationStatusExpired},
		{"pending past deadline", ReservationStatusPending, now.Add(-time.Minute), ReservationStatusExpired},
		{"paid never expires", ReservationStatusPaid, now.Add(-time.Hour), ReservationStatusPaid},
		{"cancelled stays cancelled", ReservationStatusCancelled, now.Add(-time.Hour), ReservationStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveStatus(tt.status, tt.expiresAt, now); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestReservation_SameSelection(t *testing.T) {
	tierA := uuid.New()
	tierB := uuid.New()
	r := Reservation{Items: []ReservationItem{
		{TierID: tierA, Quantity: 2, UnitPriceCents: 500},
		{TierID: tierB, Quantity: 1, UnitPriceCents: 900},
	}}

	if !r.SameSelection([]ReservationItem{{TierID: tierA, Quantity: 2}, {TierID: tierB, Quantity: 1}}) {
		t.Fatal("expected matching selection (prices ignored)")
	}
	if r.SameSelection([]ReservationItem{{TierID: tierA, Quantity: 3}, {TierID: tierB, Quantity: 1}}) {
		t.Fatal("expected quantity mismatch to be detected")
	}
	if r.SameSelection([]ReservationItem{{TierID: tierA, Quantity: 2}}) {
		t.Fatal("expected length mismatch to be detected")
	}
}
