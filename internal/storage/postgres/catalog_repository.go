package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/x1unix/thoughtly-ticket-booking/internal/domain"
)

// CatalogRepository stores events and their ticket tiers.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *CatalogRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	const stmt = `INSERT INTO events (id, name) VALUES ($1, $2)`

	if _, err := conn(ctx, r.pool).Exec(ctx, stmt, event.ID, event.Name); err != nil {
		return fmt.Errorf("create event %q: %w", event.Name, err)
	}
	return nil
}

func (r *CatalogRepository) CreateTier(ctx context.Context, tier domain.TicketTier) error {
	const stmt = `
INSERT INTO ticket_tiers (id, event_id, name, price_cents, total_count)
VALUES ($1, $2, $3, $4, $5)`

	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		tier.ID,
		tier.EventID,
		tier.Name,
		tier.PriceCents,
		tier.TotalCount,
	)
	if err != nil {
		return fmt.Errorf("create tier %q: %w", tier.Name, err)
	}
	return nil
}

type eventRow struct {
	ID   uuid.UUID `db:"id"`
	Name string    `db:"name"`
}

func (r *CatalogRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	const query = `SELECT id, name FROM events ORDER BY created_at`

	var rows []eventRow
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &rows, query); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, domain.Event{ID: row.ID, Name: row.Name})
	}
	return events, nil
}

func (r *CatalogRepository) EventExists(ctx context.Context, eventID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`

	var exists bool
	if err := conn(ctx, r.pool).QueryRow(ctx, query, eventID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return false, nil
		}
		return false, fmt.Errorf("check event: %w", err)
	}
	return exists, nil
}

type tierSummaryRow struct {
	TierID         uuid.UUID `db:"tier_id"`
	Name           string    `db:"name"`
	PriceCents     int       `db:"price_cents"`
	AvailableCount int       `db:"available_count"`
}

// ListTierSummaries reports each tier with its live available count:
// total minus quantities of unexpired pending holds and paid sales. The
// same arithmetic the acquisition path runs under tier locks, without the
// locks - listings may be momentarily stale, the ledger never is.
func (r *CatalogRepository) ListTierSummaries(ctx context.Context, eventID uuid.UUID, now time.Time) ([]domain.TierSummary, error) {
	const query = `
SELECT
	tt.id AS tier_id,
	tt.name,
	tt.price_cents,
	tt.total_count - COALESCE(held.quantity, 0) - COALESCE(sold.quantity, 0) AS available_count
FROM ticket_tiers tt
LEFT JOIN (
	SELECT ri.tier_id, SUM(ri.quantity) AS quantity
	FROM reservation_items ri
	JOIN reservations res ON res.id = ri.reservation_id
	WHERE res.status = 'pending' AND res.expires_at > $2
	GROUP BY ri.tier_id
) held ON held.tier_id = tt.id
LEFT JOIN (
	SELECT ri.tier_id, SUM(ri.quantity) AS quantity
	FROM reservation_items ri
	JOIN reservations res ON res.id = ri.reservation_id
	WHERE res.status = 'paid'
	GROUP BY ri.tier_id
) sold ON sold.tier_id = tt.id
WHERE tt.event_id = $1
ORDER BY tt.price_cents`

	var rows []tierSummaryRow
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &rows, query, eventID, now); err != nil {
		return nil, fmt.Errorf("list tier summaries: %w", err)
	}

	summaries := make([]domain.TierSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, domain.TierSummary{
			TierID:         row.TierID,
			Name:           row.Name,
			PriceCents:     row.PriceCents,
			AvailableCount: row.AvailableCount,
		})
	}
	return summaries, nil
}
