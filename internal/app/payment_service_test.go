package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/x1unix/thoughtly-ticket-booking/internal/clock"
	"github.com/x1unix/thoughtly-ticket-booking/internal/domain"
	"github.com/x1unix/thoughtly-ticket-booking/internal/pay"
)

type stubGateway struct {
	authorize func(ctx context.Context, req pay.AuthRequest) (pay.AuthResult, error)
	refunded  []uuid.UUID
}

func (g *stubGateway) Authorize(ctx context.Context, req pay.AuthRequest) (pay.AuthResult, error) {
	return g.authorize(ctx, req)
}

func (g *stubGateway) Refund(_ context.Context, txID uuid.UUID) error {
	g.refunded = append(g.refunded, txID)
	return nil
}

func TestPaymentService_Settle(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	eventID := uuid.New()
	tierID := uuid.New()
	actorID := uuid.New()

	seed := func(status domain.ReservationStatus, expiresAt time.Time) (*fakeStore, uuid.UUID) {
		store := newFakeStore(domain.TicketTier{ID: tierID, EventID: eventID, PriceCents: 2500, TotalCount: 10})
		id := uuid.New()
		store.reservations[id] = domain.Reservation{
			ID:        id,
			EventID:   eventID,
			ActorID:   actorID,
			Items:     []domain.ReservationItem{{TierID: tierID, Quantity: 3, UnitPriceCents: 2500}},
			Status:    status,
			ExpiresAt: expiresAt,
		}
		return store, id
	}

	makeSvc := func(store *fakeStore, gateway pay.Gateway, opts ...PaymentServiceOption) *PaymentService {
		return NewPaymentService(store, gateway, clock.NewFixed(now), newTestMetrics(), testLogger, opts...)
	}

	t.Run("settles a pending reservation", func(t *testing.T) {
		store, id := seed(domain.ReservationStatusPending, now.Add(10*time.Minute))
		svc := makeSvc(store, pay.MockGateway{})

		payment, err := svc.Settle(context.Background(), actorID, id, pay.KnownFakeCard)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if payment.AmountCents != 7500 {
			t.Fatalf("expected amount 7500, got %d", payment.AmountCents)
		}
		if payment.TxID == uuid.Nil {
			t.Fatalf("expected a transaction ID")
		}
		if got := store.reservation(id).Status; got != domain.ReservationStatusPaid {
			t.Fatalf("expected paid, got %s", got)
		}
	})

	t.Run("settles without caller identity", func(t *testing.T) {
		store, id := seed(domain.ReservationStatusPending, now.Add(10*time.Minute))
		svc := makeSvc(store, pay.MockGateway{})

		payment, err := svc.Settle(context.Background(), uuid.Nil, id, pay.KnownFakeCard)
		if err != nil {
			t.Fatalf("expected anonymous settle to succeed, got %v", err)
		}
		if payment.AmountCents != 7500 {
			t.Fatalf("expected amount 7500, got %d", payment.AmountCents)
		}
		if got := store.reservation(id).Status; got != domain.ReservationStatusPaid {
			t.Fatalf("expected paid, got %s", got)
		}
	})

	t.Run("replaying a settle returns the original payment", func(t *testing.T) {
		store, id := seed(domain.ReservationStatusPending, now.Add(10*time.Minute))
		svc := makeSvc(store, pay.MockGateway{})

		first, err := svc.Settle(context.Background(), actorID, id, pay.KnownFakeCard)
		if err != nil {
			t.Fatalf("first settle: %v", err)
		}
		second, err := svc.Settle(context.Background(), actorID, id, pay.KnownFakeCard)
		if err != nil {
			t.Fatalf("second settle: %v", err)
		}
		if second.TxID != first.TxID {
			t.Fatalf("expected same payment, got %s and %s", first.TxID, second.TxID)
		}
		if len(store.payments) != 1 {
			t.Fatalf("expected a single payment record, got %d", len(store.payments))
		}
	})

	t.Run("declined card leaves the reservation pending", func(t *testing.T) {
		store, id := seed(domain.ReservationStatusPending, now.Add(10*time.Minute))
		svc := makeSvc(store, pay.MockGateway{})

		_, err := svc.Settle(context.Background(), actorID, id, "9999999999")
		if !errors.Is(err, domain.ErrPaymentDeclined) {
			t.Fatalf("expected ErrPaymentDeclined, got %v", err)
		}
		if got := store.reservation(id).Status; got != domain.ReservationStatusPending {
			t.Fatalf("expected reservation still pending, got %s", got)
		}
		if len(store.payments) != 0 {
			t.Fatalf("expected no payment record, got %d", len(store.payments))
		}
	})

	t.Run("malformed card is rejected before the gateway", func(t *testing.T) {
		store, id := seed(domain.ReservationStatusPending, now.Add(10*time.Minute))
		called := false
		svc := makeSvc(store, &stubGateway{
			authorize: func(context.Context, pay.AuthRequest) (pay.AuthResult, error) {
				called = true
				return pay.AuthResult{}, nil
			},
		})

		_, err := svc.Settle(context.Background(), actorID, id, "not-a-card")
		if !errors.Is(err, domain.ErrInvalidCard) {
			t.Fatalf("expected ErrInvalidCard, got %v", err)
		}
		if called {
			t.Fatalf("gateway must not be called for a malformed card")
		}
	})

	t.Run("overdue reservation expires instead of settling", func(t *testing.T) {
		store, id := seed(domain.ReservationStatusPending, now.Add(-time.Minute))
		svc := makeSvc(store, &stubGateway{
			authorize: func(context.Context, pay.AuthRequest) (pay.AuthResult, error) {
				t.Fatal("gateway must not be called for an overdue reservation")
				return pay.AuthResult{}, nil
			},
		})

		_, err := svc.Settle(context.Background(), actorID, id, pay.KnownFakeCard)
		if !errors.Is(err, domain.ErrReservationExpired) {
			t.Fatalf("expected ErrReservationExpired, got %v", err)
		}
		if got := store.reservation(id).Status; got != domain.ReservationStatusExpired {
			t.Fatalf("expected expired, got %s", got)
		}
	})

	t.Run("hold that lapses during authorization is refunded", func(t *testing.T) {
		store, id := seed(domain.ReservationStatusPending, now.Add(10*time.Minute))
		clk := clock.NewManual(now)
		txID := uuid.New()
		gateway := &stubGateway{
			authorize: func(context.Context, pay.AuthRequest) (pay.AuthResult, error) {
				clk.Advance(11 * time.Minute)
				return pay.AuthResult{TxID: txID}, nil
			},
		}
		svc := NewPaymentService(store, gateway, clk, newTestMetrics(), testLogger)

		_, err := svc.Settle(context.Background(), actorID, id, pay.KnownFakeCard)
		if !errors.Is(err, domain.ErrReservationExpired) {
			t.Fatalf("expected ErrReservationExpired, got %v", err)
		}
		if got := store.reservation(id).Status; got != domain.ReservationStatusExpired {
			t.Fatalf("expected expired, got %s", got)
		}
		if len(store.payments) != 0 {
			t.Fatalf("expected no payment record, got %d", len(store.payments))
		}
		if len(gateway.refunded) != 1 || gateway.refunded[0] != txID {
			t.Fatalf("expected refund of %s, got %v", txID, gateway.refunded)
		}
	})

	t.Run("terminal and foreign reservations", func(t *testing.T) {
		cases := []struct {
			name   string
			status domain.ReservationStatus
			actor  uuid.UUID
			want   error
		}{
			{"cancelled", domain.ReservationStatusCancelled, actorID, domain.ErrReservationCancelled},
			{"expired", domain.ReservationStatusExpired, actorID, domain.ErrReservationExpired},
			{"not owner", domain.ReservationStatusPending, uuid.New(), domain.ErrNotOwner},
		}
		for _, tc := range cases {
			store, id := seed(tc.status, now.Add(10*time.Minute))
			svc := makeSvc(store, pay.MockGateway{})
			if _, err := svc.Settle(context.Background(), tc.actor, id, pay.KnownFakeCard); !errors.Is(err, tc.want) {
				t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
			}
		}
	})

	t.Run("authorization timeout reads as a decline", func(t *testing.T) {
		store, id := seed(domain.ReservationStatusPending, now.Add(10*time.Minute))
		svc := makeSvc(store, &stubGateway{
			authorize: func(ctx context.Context, _ pay.AuthRequest) (pay.AuthResult, error) {
				<-ctx.Done()
				return pay.AuthResult{}, ctx.Err()
			},
		}, WithAuthTimeout(10*time.Millisecond))

		_, err := svc.Settle(context.Background(), actorID, id, pay.KnownFakeCard)
		if !errors.Is(err, domain.ErrPaymentDeclined) {
			t.Fatalf("expected ErrPaymentDeclined, got %v", err)
		}
		if got := store.reservation(id).Status; got != domain.ReservationStatusPending {
			t.Fatalf("expected reservation still pending, got %s", got)
		}
	})

	t.Run("refunds when the commit fails after authorization", func(t *testing.T) {
		store, id := seed(domain.ReservationStatusPending, now.Add(10*time.Minute))
		store.failCommit = errors.New("connection reset")

		txID := uuid.New()
		gateway := &stubGateway{
			authorize: func(context.Context, pay.AuthRequest) (pay.AuthResult, error) {
				return pay.AuthResult{TxID: txID}, nil
			},
		}
		svc := makeSvc(store, gateway)

		_, err := svc.Settle(context.Background(), actorID, id, pay.KnownFakeCard)
		if err == nil {
			t.Fatal("expected commit failure to surface")
		}
		if len(gateway.refunded) != 1 || gateway.refunded[0] != txID {
			t.Fatalf("expected refund of %s, got %v", txID, gateway.refunded)
		}
		if got := store.reservation(id).Status; got != domain.ReservationStatusPending {
			t.Fatalf("expected rollback to pending, got %s", got)
		}
	})
}
