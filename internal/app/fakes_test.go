package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/x1unix/thoughtly-ticket-booking/internal/domain"
	"github.com/x1unix/thoughtly-ticket-booking/internal/idempotency"
)

var testLogger = zap.NewNop().Sugar()

// fakeStore is an in-memory stand-in for the Postgres repositories. WithTx
// serializes transactions with a mutex and rolls writes back on error; the
// other methods expect to run either inside a transaction or from a single
// goroutine.
type fakeStore struct {
	mu           sync.Mutex
	events       map[uuid.UUID]domain.Event
	tiers        map[uuid.UUID]domain.TicketTier
	reservations map[uuid.UUID]domain.Reservation
	payments     map[uuid.UUID]domain.Payment

	failCommit error
}

func newFakeStore(tiers ...domain.TicketTier) *fakeStore {
	f := &fakeStore{
		events:       make(map[uuid.UUID]domain.Event),
		tiers:        make(map[uuid.UUID]domain.TicketTier),
		reservations: make(map[uuid.UUID]domain.Reservation),
		payments:     make(map[uuid.UUID]domain.Payment),
	}
	for _, tier := range tiers {
		f.tiers[tier.ID] = tier
		if _, ok := f.events[tier.EventID]; !ok {
			f.events[tier.EventID] = domain.Event{ID: tier.EventID, Name: "event"}
		}
	}
	return f
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	events := copyMap(f.events)
	tiers := copyMap(f.tiers)
	reservations := copyMap(f.reservations)
	payments := copyMap(f.payments)

	err := fn(ctx)
	if err == nil && f.failCommit != nil {
		err = f.failCommit
	}
	if err != nil {
		f.events = events
		f.tiers = tiers
		f.reservations = reservations
		f.payments = payments
		return err
	}
	return nil
}

func (f *fakeStore) EventExists(_ context.Context, eventID uuid.UUID) (bool, error) {
	_, ok := f.events[eventID]
	return ok, nil
}

func (f *fakeStore) LockTiers(_ context.Context, eventID uuid.UUID, tierIDs []uuid.UUID) ([]domain.TicketTier, error) {
	var out []domain.TicketTier
	for _, id := range tierIDs {
		tier, ok := f.tiers[id]
		if !ok || tier.EventID != eventID {
			continue
		}
		out = append(out, tier)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (f *fakeStore) SumLiveHolds(_ context.Context, tierIDs []uuid.UUID, now time.Time) (map[uuid.UUID]int, error) {
	wanted := idSet(tierIDs)
	held := make(map[uuid.UUID]int)
	for _, res := range f.reservations {
		if res.Status != domain.ReservationStatusPending || !res.ExpiresAt.After(now) {
			continue
		}
		for _, item := range res.Items {
			if wanted[item.TierID] {
				held[item.TierID] += item.Quantity
			}
		}
	}
	return held, nil
}

func (f *fakeStore) SumSold(_ context.Context, tierIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	wanted := idSet(tierIDs)
	sold := make(map[uuid.UUID]int)
	for _, res := range f.reservations {
		if res.Status != domain.ReservationStatusPaid {
			continue
		}
		for _, item := range res.Items {
			if wanted[item.TierID] {
				sold[item.TierID] += item.Quantity
			}
		}
	}
	return sold, nil
}

func (f *fakeStore) CreateReservation(_ context.Context, reservation domain.Reservation) error {
	for _, existing := range f.reservations {
		if existing.ActorID == reservation.ActorID && existing.IdempotencyKey == reservation.IdempotencyKey {
			return domain.ErrDuplicateReservation
		}
	}
	f.reservations[reservation.ID] = reservation
	return nil
}

func (f *fakeStore) FindReservationByActorAndKey(_ context.Context, actorID uuid.UUID, key string) (*domain.Reservation, error) {
	for _, res := range f.reservations {
		if res.ActorID == actorID && res.IdempotencyKey == key {
			out := res
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetReservationForUpdate(_ context.Context, id uuid.UUID) (domain.Reservation, error) {
	res, ok := f.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return res, nil
}

func (f *fakeStore) TransitionReservation(_ context.Context, id uuid.UUID, from, to domain.ReservationStatus) (bool, error) {
	res, ok := f.reservations[id]
	if !ok || res.Status != from {
		return false, nil
	}
	res.Status = to
	f.reservations[id] = res
	return true, nil
}

func (f *fakeStore) ListReservationsByActor(_ context.Context, actorID uuid.UUID) ([]domain.ReservationSummary, error) {
	var out []domain.ReservationSummary
	for _, res := range f.reservations {
		if res.ActorID != actorID {
			continue
		}
		out = append(out, domain.ReservationSummary{
			ID:        res.ID,
			EventID:   res.EventID,
			EventName: f.events[res.EventID].Name,
			ExpiresAt: res.ExpiresAt,
			Status:    res.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (f *fakeStore) GetPaymentByReservation(_ context.Context, reservationID uuid.UUID) (*domain.Payment, error) {
	payment, ok := f.payments[reservationID]
	if !ok {
		return nil, nil
	}
	out := payment
	return &out, nil
}

func (f *fakeStore) CreatePayment(_ context.Context, payment domain.Payment) error {
	if _, ok := f.payments[payment.ReservationID]; ok {
		return domain.ErrAlreadyPaid
	}
	f.payments[payment.ReservationID] = payment
	return nil
}

func (f *fakeStore) ExpireDue(_ context.Context, now time.Time, batchSize int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	expired := 0
	for id, res := range f.reservations {
		if expired == batchSize {
			break
		}
		if res.Status != domain.ReservationStatusPending || res.ExpiresAt.After(now) {
			continue
		}
		res.Status = domain.ReservationStatusExpired
		f.reservations[id] = res
		expired++
	}
	return expired, nil
}

func (f *fakeStore) CreateEvent(_ context.Context, event domain.Event) error {
	f.events[event.ID] = event
	return nil
}

func (f *fakeStore) CreateTier(_ context.Context, tier domain.TicketTier) error {
	f.tiers[tier.ID] = tier
	return nil
}

func (f *fakeStore) ListEvents(_ context.Context) ([]domain.Event, error) {
	out := make([]domain.Event, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (f *fakeStore) ListTierSummaries(ctx context.Context, eventID uuid.UUID, now time.Time) ([]domain.TierSummary, error) {
	var ids []uuid.UUID
	for id, tier := range f.tiers {
		if tier.EventID == eventID {
			ids = append(ids, id)
		}
	}
	held, _ := f.SumLiveHolds(ctx, ids, now)
	sold, _ := f.SumSold(ctx, ids)

	var out []domain.TierSummary
	for _, id := range ids {
		tier := f.tiers[id]
		out = append(out, domain.TierSummary{
			TierID:         tier.ID,
			Name:           tier.Name,
			PriceCents:     tier.PriceCents,
			AvailableCount: tier.TotalCount - held[id] - sold[id],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PriceCents < out[j].PriceCents
	})
	return out, nil
}

func (f *fakeStore) reservation(id uuid.UUID) domain.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reservations[id]
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// fakeIdemStore mirrors the Redis store's claim protocol in memory.
type fakeIdemStore struct {
	mu      sync.Mutex
	results map[string]idempotency.Result
	claims  map[string]string

	claimed   int
	completed int
	abandoned int
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{
		results: make(map[string]idempotency.Result),
		claims:  make(map[string]string),
	}
}

func (f *fakeIdemStore) GetOrClaim(_ context.Context, actorID uuid.UUID, key string) (*idempotency.Result, *idempotency.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	storeKey := actorID.String() + ":" + key
	if result, ok := f.results[storeKey]; ok {
		out := result
		return &out, nil, nil
	}
	if _, ok := f.claims[storeKey]; ok {
		return nil, nil, idempotency.ErrRequestInFlight
	}

	token := uuid.NewString()
	f.claims[storeKey] = token
	f.claimed++
	return nil, &idempotency.Claim{Key: storeKey, Token: token}, nil
}

func (f *fakeIdemStore) Complete(_ context.Context, claim *idempotency.Claim, result idempotency.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claims[claim.Key] != claim.Token {
		return idempotency.ErrClaimLost
	}
	delete(f.claims, claim.Key)
	f.results[claim.Key] = result
	f.completed++
	return nil
}

func (f *fakeIdemStore) Abandon(_ context.Context, claim *idempotency.Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claims[claim.Key] != claim.Token {
		return idempotency.ErrClaimLost
	}
	delete(f.claims, claim.Key)
	f.abandoned++
	return nil
}
