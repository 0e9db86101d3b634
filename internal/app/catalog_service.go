package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/x1unix/thoughtly-ticket-booking/internal/clock"
	"github.com/x1unix/thoughtly-ticket-booking/internal/domain"
)

type CatalogRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateEvent(ctx context.Context, event domain.Event) error
	CreateTier(ctx context.Context, tier domain.TicketTier) error
	ListEvents(ctx context.Context) ([]domain.Event, error)
	EventExists(ctx context.Context, eventID uuid.UUID) (bool, error)
	ListTierSummaries(ctx context.Context, eventID uuid.UUID, now time.Time) ([]domain.TierSummary, error)
}

// CatalogService serves the event and tier catalog.
type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock) *CatalogService {
	return &CatalogService{repo: repo, clock: clk}
}

type CreateEventInput struct {
	Name  string
	Tiers []CreateTierInput
}

type CreateTierInput struct {
	Name       string
	PriceCents int
	TotalCount int
}

type CreateEventResult struct {
	Event domain.Event
	// TierIDs maps each tier's name to its generated ID.
	TierIDs map[string]uuid.UUID
}

// CreateEvent registers an event together with its ticket tiers.
func (s *CatalogService) CreateEvent(ctx context.Context, in CreateEventInput) (CreateEventResult, error) {
	if in.Name == "" {
		return CreateEventResult{}, domain.ErrEventNameRequired
	}
	for _, tier := range in.Tiers {
		if tier.Name == "" || tier.PriceCents < 0 || tier.TotalCount < 0 {
			return CreateEventResult{}, domain.ErrInvalidQuantity
		}
	}

	result := CreateEventResult{
		Event: domain.Event{
			ID:   uuid.New(),
			Name: in.Name,
		},
		TierIDs: make(map[string]uuid.UUID, len(in.Tiers)),
	}
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateEvent(txCtx, result.Event); err != nil {
			return err
		}
		for _, tier := range in.Tiers {
			id := uuid.New()
			err := s.repo.CreateTier(txCtx, domain.TicketTier{
				ID:         id,
				EventID:    result.Event.ID,
				Name:       tier.Name,
				PriceCents: tier.PriceCents,
				TotalCount: tier.TotalCount,
			})
			if err != nil {
				return err
			}
			result.TierIDs[tier.Name] = id
		}
		return nil
	})
	if err != nil {
		return CreateEventResult{}, err
	}
	return result, nil
}

func (s *CatalogService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.repo.ListEvents(ctx)
}

// ListTiers reports each tier of the event with its current availability.
// Availability counts only live holds, so expired reservations free their
// seats without waiting for the sweeper.
func (s *CatalogService) ListTiers(ctx context.Context, eventID uuid.UUID) ([]domain.TierSummary, error) {
	exists, err := s.repo.EventExists(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrEventNotFound
	}
	return s.repo.ListTierSummaries(ctx, eventID, s.clock.Now())
}
