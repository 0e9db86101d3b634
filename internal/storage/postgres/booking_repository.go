package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/x1unix/thoughtly-ticket-booking/internal/domain"
)

// BookingRepository persists reservations, their per-tier items and
// payments, and answers the inventory arithmetic behind hold acquisition.
type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *BookingRepository) EventExists(ctx context.Context, eventID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`

	var exists bool
	if err := conn(ctx, r.pool).QueryRow(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check event: %w", err)
	}
	return exists, nil
}

// LockTiers locks the requested tier rows in sorted-ID order so concurrent
// acquisitions for overlapping tiers always take locks in the same order.
// All per-tier availability math must happen under these locks.
func (r *BookingRepository) LockTiers(ctx context.Context, eventID uuid.UUID, tierIDs []uuid.UUID) ([]domain.TicketTier, error) {
	const query = `
SELECT id, event_id, name, price_cents, total_count
FROM ticket_tiers
WHERE event_id = $1 AND id = ANY($2)
ORDER BY id
FOR UPDATE`

	rows, err := conn(ctx, r.pool).Query(ctx, query, eventID, tierIDs)
	if err != nil {
		return nil, fmt.Errorf("lock tiers: %w", err)
	}
	defer rows.Close()

	var tiers []domain.TicketTier
	for rows.Next() {
		var t domain.TicketTier
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.PriceCents, &t.TotalCount); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock tiers: %w", err)
	}
	return tiers, nil
}

// SumLiveHolds returns, per tier, the quantity held by pending reservations
// that have not yet passed their deadline. Stale pending holds stop counting
// here the moment they expire, which is what frees their capacity even
// before the sweeper commits the transition.
func (r *BookingRepository) SumLiveHolds(ctx context.Context, tierIDs []uuid.UUID, now time.Time) (map[uuid.UUID]int, error) {
	const query = `
SELECT ri.tier_id, COALESCE(SUM(ri.quantity), 0) AS quantity
FROM reservation_items ri
JOIN reservations res ON res.id = ri.reservation_id
WHERE ri.tier_id = ANY($1) AND res.status = 'pending' AND res.expires_at > $2
GROUP BY ri.tier_id`

	return r.sumByTier(ctx, query, tierIDs, now)
}

// SumSold returns, per tier, the quantity owned by paid reservations.
func (r *BookingRepository) SumSold(ctx context.Context, tierIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	const query = `
SELECT ri.tier_id, COALESCE(SUM(ri.quantity), 0) AS quantity
FROM reservation_items ri
JOIN reservations res ON res.id = ri.reservation_id
WHERE ri.tier_id = ANY($1) AND res.status = 'paid'
GROUP BY ri.tier_id`

	return r.sumByTier(ctx, query, tierIDs)
}

func (r *BookingRepository) sumByTier(ctx context.Context, query string, tierIDs []uuid.UUID, extraArgs ...any) (map[uuid.UUID]int, error) {
	args := append([]any{tierIDs}, extraArgs...)
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by tier: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID]int, len(tierIDs))
	for rows.Next() {
		var tierID uuid.UUID
		var qty int
		if err := rows.Scan(&tierID, &qty); err != nil {
			return nil, fmt.Errorf("scan tier sum: %w", err)
		}
		result[tierID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sum by tier: %w", err)
	}
	return result, nil
}

func (r *BookingRepository) CreateReservation(ctx context.Context, reservation domain.Reservation) error {
	const headerStmt = `
INSERT INTO reservations (id, event_id, actor_id, status, expires_at, idempotency_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	const itemStmt = `
INSERT INTO reservation_items (reservation_id, tier_id, quantity, unit_price_cents)
VALUES ($1, $2, $3, $4)`

	q := conn(ctx, r.pool)
	_, err := q.Exec(ctx, headerStmt,
		reservation.ID,
		reservation.EventID,
		reservation.ActorID,
		reservation.Status,
		reservation.ExpiresAt,
		reservation.IdempotencyKey,
		reservation.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReservation
		}
		return fmt.Errorf("create reservation: %w", err)
	}

	for _, item := range reservation.Items {
		if _, err := q.Exec(ctx, itemStmt, reservation.ID, item.TierID, item.Quantity, item.UnitPriceCents); err != nil {
			return fmt.Errorf("create reservation item: %w", err)
		}
	}
	return nil
}

func (r *BookingRepository) FindReservationByActorAndKey(ctx context.Context, actorID uuid.UUID, key string) (*domain.Reservation, error) {
	const query = `
SELECT id, event_id, actor_id, status, expires_at, idempotency_key, created_at
FROM reservations
WHERE actor_id = $1 AND idempotency_key = $2`

	reservation, err := r.scanReservation(ctx, query, actorID, key)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

// GetReservationForUpdate locks the reservation row. Every state transition
// and the payment settlement path go through this lock, which is what makes
// Paid/Expired/Cancelled mutually exclusive.
func (r *BookingRepository) GetReservationForUpdate(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	const query = `
SELECT id, event_id, actor_id, status, expires_at, idempotency_key, created_at
FROM reservations
WHERE id = $1
FOR UPDATE`

	reservation, err := r.scanReservation(ctx, query, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, err
	}
	return reservation, nil
}

func (r *BookingRepository) scanReservation(ctx context.Context, query string, args ...any) (domain.Reservation, error) {
	const itemsQuery = `
SELECT tier_id, quantity, unit_price_cents
FROM reservation_items
WHERE reservation_id = $1
ORDER BY tier_id`

	q := conn(ctx, r.pool)

	var res domain.Reservation
	err := q.QueryRow(ctx, query, args...).Scan(
		&res.ID,
		&res.EventID,
		&res.ActorID,
		&res.Status,
		&res.ExpiresAt,
		&res.IdempotencyKey,
		&res.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, err
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}

	rows, err := q.Query(ctx, itemsQuery, res.ID)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("get reservation items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.ReservationItem
		if err := rows.Scan(&item.TierID, &item.Quantity, &item.UnitPriceCents); err != nil {
			return domain.Reservation{}, fmt.Errorf("scan reservation item: %w", err)
		}
		res.Items = append(res.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Reservation{}, fmt.Errorf("get reservation items: %w", err)
	}
	return res, nil
}

// TransitionReservation commits a state change only when the stored status
// still matches. Returns false when another transition won the race.
func (r *BookingRepository) TransitionReservation(ctx context.Context, id uuid.UUID, from, to domain.ReservationStatus) (bool, error) {
	const stmt = `UPDATE reservations SET status = $3 WHERE id = $1 AND status = $2`

	tag, err := conn(ctx, r.pool).Exec(ctx, stmt, id, from, to)
	if err != nil {
		return false, fmt.Errorf("transition reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

type reservationSummaryRow struct {
	ID        uuid.UUID `db:"id"`
	EventID   uuid.UUID `db:"event_id"`
	EventName string    `db:"event_name"`
	ExpiresAt time.Time `db:"expires_at"`
	Status    string    `db:"status"`
}

func (r *BookingRepository) ListReservationsByActor(ctx context.Context, actorID uuid.UUID) ([]domain.ReservationSummary, error) {
	const query = `
SELECT res.id, res.event_id, e.name AS event_name, res.expires_at, res.status
FROM reservations res
LEFT JOIN events e ON e.id = res.event_id
WHERE res.actor_id = $1
ORDER BY res.created_at DESC`

	var rows []reservationSummaryRow
	if err := pgxscan.Select(ctx, conn(ctx, r.pool), &rows, query, actorID); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	summaries := make([]domain.ReservationSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, domain.ReservationSummary{
			ID:        row.ID,
			EventID:   row.EventID,
			EventName: row.EventName,
			ExpiresAt: row.ExpiresAt,
			Status:    domain.ReservationStatus(row.Status),
		})
	}
	return summaries, nil
}

func (r *BookingRepository) GetPaymentByReservation(ctx context.Context, reservationID uuid.UUID) (*domain.Payment, error) {
	const query = `
SELECT tx_id, reservation_id, amount_cents, settled_at
FROM payments
WHERE reservation_id = $1`

	var p domain.Payment
	err := conn(ctx, r.pool).QueryRow(ctx, query, reservationID).
		Scan(&p.TxID, &p.ReservationID, &p.AmountCents, &p.SettledAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

func (r *BookingRepository) CreatePayment(ctx context.Context, payment domain.Payment) error {
	const stmt = `
INSERT INTO payments (tx_id, reservation_id, amount_cents, settled_at)
VALUES ($1, $2, $3, $4)`

	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		payment.TxID,
		payment.ReservationID,
		payment.AmountCents,
		payment.SettledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyPaid
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// ExpireDue flips due pending reservations to expired in one statement.
// SKIP LOCKED leaves rows under settlement alone; they are either paid by
// the time the next pass runs, or picked up then.
func (r *BookingRepository) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	const stmt = `
WITH due AS (
	SELECT id
	FROM reservations
	WHERE status = 'pending' AND expires_at <= $1
	ORDER BY expires_at
	FOR UPDATE SKIP LOCKED
	LIMIT $2
)
UPDATE reservations res
SET status = 'expired'
FROM due
WHERE res.id = due.id`

	tag, err := conn(ctx, r.pool).Exec(ctx, stmt, now, limit)
	if err != nil {
		return 0, fmt.Errorf("expire due reservations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
