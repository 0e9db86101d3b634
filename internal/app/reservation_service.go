package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/x1unix/thoughtly-ticket-booking/internal/clock"
	"github.com/x1unix/thoughtly-ticket-booking/internal/domain"
	"github.com/x1unix/thoughtly-ticket-booking/internal/idempotency"
	"github.com/x1unix/thoughtly-ticket-booking/internal/metrics"
)

// IdempotencyStore guards reservation creation against duplicate requests.
type IdempotencyStore interface {
	GetOrClaim(ctx context.Context, actorID uuid.UUID, key string) (*idempotency.Result, *idempotency.Claim, error)
	Complete(ctx context.Context, claim *idempotency.Claim, result idempotency.Result) error
	Abandon(ctx context.Context, claim *idempotency.Claim) error
}

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	EventExists(ctx context.Context, eventID uuid.UUID) (bool, error)
	LockTiers(ctx context.Context, eventID uuid.UUID, tierIDs []uuid.UUID) ([]domain.TicketTier, error)
	SumLiveHolds(ctx context.Context, tierIDs []uuid.UUID, now time.Time) (map[uuid.UUID]int, error)
	SumSold(ctx context.Context, tierIDs []uuid.UUID) (map[uuid.UUID]int, error)
	CreateReservation(ctx context.Context, reservation domain.Reservation) error
	FindReservationByActorAndKey(ctx context.Context, actorID uuid.UUID, key string) (*domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	TransitionReservation(ctx context.Context, id uuid.UUID, from, to domain.ReservationStatus) (bool, error)
	ListReservationsByActor(ctx context.Context, actorID uuid.UUID) ([]domain.ReservationSummary, error)
}

const defaultReservationTTL = 15 * time.Minute

// ReservationService owns the reservation state machine and orchestrates
// hold acquisition: idempotency claim first, then an all-or-nothing
// acquisition against the tier ledger inside one transaction.
type ReservationService struct {
	repo    ReservationRepository
	idem    IdempotencyStore
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
	ttl     time.Duration
}

type ReservationServiceOption func(*ReservationService)

// WithReservationTTL overrides the default hold lifetime.
func WithReservationTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func NewReservationService(
	repo ReservationRepository,
	idem IdempotencyStore,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
	opts ...ReservationServiceOption,
) *ReservationService {
	svc := &ReservationService{
		repo:    repo,
		idem:    idem,
		clock:   clk,
		metrics: m,
		logger:  logger,
		ttl:     defaultReservationTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CreateReservationInput struct {
	ActorID        uuid.UUID
	EventID        uuid.UUID
	IdempotencyKey string
	TicketCounts   map[uuid.UUID]uint
}

type CreateReservationResult struct {
	ReservationID uuid.UUID
	ExpiresAt     time.Time
}

// CreateReservation reserves the requested quantities across all tiers or
// nothing at all. Replays of the same (actor, key) return the original
// result; a concurrent duplicate is told to retry via ErrRequestInFlight.
func (s *ReservationService) CreateReservation(ctx context.Context, in CreateReservationInput) (CreateReservationResult, error) {
	items, err := normalizeSelection(in.TicketCounts)
	if err != nil {
		return CreateReservationResult{}, err
	}
	if in.ActorID == uuid.Nil {
		return CreateReservationResult{}, domain.ErrActorRequired
	}
	if in.IdempotencyKey == "" {
		return CreateReservationResult{}, domain.ErrIdempotencyKeyRequired
	}

	cached, claim, err := s.idem.GetOrClaim(ctx, in.ActorID, in.IdempotencyKey)
	if err != nil {
		return CreateReservationResult{}, err
	}
	if cached != nil {
		return CreateReservationResult{
			ReservationID: cached.ReservationID,
			ExpiresAt:     cached.ExpiresAt,
		}, nil
	}

	now := s.clock.Now()
	reservation := domain.Reservation{
		ID:             uuid.New(),
		EventID:        in.EventID,
		ActorID:        in.ActorID,
		Items:          items,
		Status:         domain.ReservationStatusPending,
		ExpiresAt:      now.Add(s.ttl),
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
	}

	created := true
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		acquired, fresh, err := s.acquireHolds(txCtx, reservation, now)
		if err != nil {
			return err
		}
		reservation = acquired
		created = fresh
		return nil
	})
	if err != nil {
		s.abandonClaim(ctx, claim)
		if domain.IsInsufficientTicketsError(err) {
			s.metrics.ReservationsRejected.Inc()
		}
		return CreateReservationResult{}, err
	}

	s.completeClaim(ctx, claim, idempotency.Result{
		ReservationID: reservation.ID,
		ExpiresAt:     reservation.ExpiresAt,
	})
	if created {
		s.metrics.ReservationsCreated.Inc()
	}

	return CreateReservationResult{
		ReservationID: reservation.ID,
		ExpiresAt:     reservation.ExpiresAt,
	}, nil
}

// acquireHolds runs the all-or-nothing acquisition under tier row locks.
// The transaction boundary is what guarantees "all or nothing": any tier
// shortfall aborts before the reservation row is written.
func (s *ReservationService) acquireHolds(ctx context.Context, reservation domain.Reservation, now time.Time) (domain.Reservation, bool, error) {
	ids := tierIDs(reservation.Items)

	tiers, err := s.repo.LockTiers(ctx, reservation.EventID, ids)
	if err != nil {
		return domain.Reservation{}, false, err
	}
	if len(tiers) != len(ids) {
		exists, err := s.repo.EventExists(ctx, reservation.EventID)
		if err != nil {
			return domain.Reservation{}, false, err
		}
		if !exists {
			return domain.Reservation{}, false, domain.ErrEventNotFound
		}
		return domain.Reservation{}, false, domain.ErrTierNotFound
	}

	held, err := s.repo.SumLiveHolds(ctx, ids, now)
	if err != nil {
		return domain.Reservation{}, false, err
	}
	sold, err := s.repo.SumSold(ctx, ids)
	if err != nil {
		return domain.Reservation{}, false, err
	}

	// Both slices are sorted by tier ID, so positions line up.
	for i, tier := range tiers {
		available := tier.TotalCount - held[tier.ID] - sold[tier.ID]
		if reservation.Items[i].Quantity > available {
			return domain.Reservation{}, false, domain.NewInsufficientTicketsError(tier.ID)
		}
		reservation.Items[i].UnitPriceCents = tier.PriceCents
	}

	if err := s.repo.CreateReservation(ctx, reservation); err != nil {
		// The (actor, key) uniqueness constraint is the durable backstop
		// when the idempotency store forgot a finished request: re-read
		// the winner and replay it.
		if errors.Is(err, domain.ErrDuplicateReservation) {
			existing, findErr := s.repo.FindReservationByActorAndKey(ctx, reservation.ActorID, reservation.IdempotencyKey)
			if findErr != nil {
				return domain.Reservation{}, false, findErr
			}
			if existing != nil {
				if existing.EventID != reservation.EventID || !existing.SameSelection(reservation.Items) {
					return domain.Reservation{}, false, domain.ErrIdempotencyConflict
				}
				return *existing, false, nil
			}
		}
		return domain.Reservation{}, false, err
	}
	return reservation, true, nil
}

// CancelReservation releases a pending reservation's hold immediately.
// Cancelling an already-cancelled reservation is a no-op; other terminal
// states are surfaced distinctly.
func (s *ReservationService) CancelReservation(ctx context.Context, actorID, reservationID uuid.UUID) error {
	if actorID == uuid.Nil {
		return domain.ErrActorRequired
	}

	expiredNow := false
	cancelled := false
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if res.ActorID != actorID {
			return domain.ErrNotOwner
		}

		switch res.Status {
		case domain.ReservationStatusPaid:
			return domain.ErrAlreadyPaid
		case domain.ReservationStatusCancelled:
			return nil
		case domain.ReservationStatusExpired:
			return domain.ErrReservationExpired
		}

		if res.IsExpired(s.clock.Now()) {
			if _, err := s.repo.TransitionReservation(txCtx, res.ID, domain.ReservationStatusPending, domain.ReservationStatusExpired); err != nil {
				return err
			}
			expiredNow = true
			return nil
		}

		ok, err := s.repo.TransitionReservation(txCtx, res.ID, domain.ReservationStatusPending, domain.ReservationStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("reservation %s changed state during cancel", res.ID)
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return err
	}
	if expiredNow {
		s.metrics.ReservationsExpired.Inc()
		return domain.ErrReservationExpired
	}
	if cancelled {
		s.metrics.ReservationsCancelled.Inc()
	}
	return nil
}

// GetUserReservations lists the actor's reservations, reporting pending
// ones past their deadline as expired without waiting for the sweeper.
func (s *ReservationService) GetUserReservations(ctx context.Context, actorID uuid.UUID) ([]domain.ReservationSummary, error) {
	if actorID == uuid.Nil {
		return nil, domain.ErrActorRequired
	}

	summaries, err := s.repo.ListReservationsByActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	for i, summary := range summaries {
		summaries[i].Status = domain.EffectiveStatus(summary.Status, summary.ExpiresAt, now)
	}
	return summaries, nil
}

func (s *ReservationService) completeClaim(ctx context.Context, claim *idempotency.Claim, result idempotency.Result) {
	if claim == nil {
		return
	}
	if err := s.idem.Complete(ctx, claim, result); err != nil && !errors.Is(err, idempotency.ErrClaimLost) {
		s.logger.Warnw("failed to record idempotency result", "error", err)
	}
}

func (s *ReservationService) abandonClaim(ctx context.Context, claim *idempotency.Claim) {
	if claim == nil {
		return
	}
	if err := s.idem.Abandon(ctx, claim); err != nil && !errors.Is(err, idempotency.ErrClaimLost) {
		s.logger.Warnw("failed to abandon idempotency claim", "error", err)
	}
}

// normalizeSelection turns the request's tier→count map into items sorted
// by tier ID, rejecting empty and non-positive selections up front.
func normalizeSelection(counts map[uuid.UUID]uint) ([]domain.ReservationItem, error) {
	if len(counts) == 0 {
		return nil, domain.ErrEmptySelection
	}

	items := make([]domain.ReservationItem, 0, len(counts))
	for tierID, qty := range counts {
		if qty == 0 {
			return nil, domain.ErrInvalidQuantity
		}
		items = append(items, domain.ReservationItem{
			TierID:   tierID,
			Quantity: int(qty),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].TierID.String() < items[j].TierID.String()
	})
	return items, nil
}

func tierIDs(items []domain.ReservationItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.TierID
	}
	return ids
}
