package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/x1unix/thoughtly-ticket-booking/internal/clock"
	"github.com/x1unix/thoughtly-ticket-booking/internal/domain"
	"github.com/x1unix/thoughtly-ticket-booking/internal/metrics"
	"github.com/x1unix/thoughtly-ticket-booking/internal/pay"
)

type PaymentRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetReservationForUpdate(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	TransitionReservation(ctx context.Context, id uuid.UUID, from, to domain.ReservationStatus) (bool, error)
	GetPaymentByReservation(ctx context.Context, reservationID uuid.UUID) (*domain.Payment, error)
	CreatePayment(ctx context.Context, payment domain.Payment) error
}

const defaultAuthTimeout = 3 * time.Second

// PaymentService settles pending reservations. Settlement holds the
// reservation row lock for the duration of the authorization call so the
// sweeper cannot expire a reservation that is mid-payment.
type PaymentService struct {
	repo        PaymentRepository
	gateway     pay.Gateway
	clock       clock.Clock
	metrics     *metrics.Metrics
	logger      *zap.SugaredLogger
	authTimeout time.Duration
}

type PaymentServiceOption func(*PaymentService)

// WithAuthTimeout bounds how long a single authorization attempt may take.
func WithAuthTimeout(d time.Duration) PaymentServiceOption {
	return func(s *PaymentService) {
		if d > 0 {
			s.authTimeout = d
		}
	}
}

func NewPaymentService(
	repo PaymentRepository,
	gateway pay.Gateway,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
	opts ...PaymentServiceOption,
) *PaymentService {
	svc := &PaymentService{
		repo:        repo,
		gateway:     gateway,
		clock:       clk,
		metrics:     m,
		logger:      logger,
		authTimeout: defaultAuthTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Settle charges a pending reservation and marks it paid. Settling an
// already-paid reservation returns the original payment. A declined,
// timed-out, or otherwise failed authorization leaves the reservation
// pending so the caller may retry until the hold expires.
//
// The storefront client sends no caller identity, so actorID is optional:
// ownership is enforced only when it is given.
func (s *PaymentService) Settle(ctx context.Context, actorID, reservationID uuid.UUID, cardNumber string) (domain.Payment, error) {
	if !pay.ValidCardNumber(cardNumber) {
		return domain.Payment{}, domain.ErrInvalidCard
	}

	var (
		payment       domain.Payment
		settled       bool
		lazilyExpired bool
		authorizedTx  uuid.UUID
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if actorID != uuid.Nil && res.ActorID != actorID {
			return domain.ErrNotOwner
		}

		switch res.Status {
		case domain.ReservationStatusPaid:
			existing, err := s.repo.GetPaymentByReservation(txCtx, res.ID)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("reservation %s is paid but has no payment record", res.ID)
			}
			payment = *existing
			return nil
		case domain.ReservationStatusCancelled:
			return domain.ErrReservationCancelled
		case domain.ReservationStatusExpired:
			return domain.ErrReservationExpired
		}

		now := s.clock.Now()
		if res.IsExpired(now) {
			if _, err := s.repo.TransitionReservation(txCtx, res.ID, domain.ReservationStatusPending, domain.ReservationStatusExpired); err != nil {
				return err
			}
			lazilyExpired = true
			return nil
		}

		amount := res.TotalCents()
		txID, err := s.authorize(txCtx, res.ID, cardNumber, amount)
		if err != nil {
			return err
		}
		authorizedTx = txID

		// The gateway call can outlive the hold, and a hold past its
		// deadline no longer counts toward availability. Re-check before
		// committing so an overdue settle expires instead of overselling;
		// the charge is refunded after the transaction commits.
		now = s.clock.Now()
		if res.IsExpired(now) {
			if _, err := s.repo.TransitionReservation(txCtx, res.ID, domain.ReservationStatusPending, domain.ReservationStatusExpired); err != nil {
				return err
			}
			lazilyExpired = true
			return nil
		}

		payment = domain.Payment{
			TxID:          txID,
			ReservationID: res.ID,
			AmountCents:   amount,
			SettledAt:     now,
		}
		if err := s.repo.CreatePayment(txCtx, payment); err != nil {
			return err
		}
		ok, err := s.repo.TransitionReservation(txCtx, res.ID, domain.ReservationStatusPending, domain.ReservationStatusPaid)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("reservation %s changed state during settlement", res.ID)
		}
		settled = true
		return nil
	})
	if err != nil {
		// Money moved but the paid state did not commit: give it back.
		if authorizedTx != uuid.Nil {
			s.refund(ctx, authorizedTx)
		}
		if errors.Is(err, domain.ErrPaymentDeclined) {
			s.metrics.PaymentsFailed.Inc()
		}
		return domain.Payment{}, err
	}
	if lazilyExpired {
		if authorizedTx != uuid.Nil {
			s.refund(ctx, authorizedTx)
		}
		s.metrics.ReservationsExpired.Inc()
		return domain.Payment{}, domain.ErrReservationExpired
	}
	if settled {
		s.metrics.PaymentsSettled.Inc()
	}
	return payment, nil
}

func (s *PaymentService) authorize(ctx context.Context, reservationID uuid.UUID, cardNumber string, amount int64) (uuid.UUID, error) {
	authCtx, cancel := context.WithTimeout(ctx, s.authTimeout)
	defer cancel()

	result, err := s.gateway.Authorize(authCtx, pay.AuthRequest{
		ReservationID: reservationID,
		CardNumber:    cardNumber,
		AmountCents:   amount,
	})
	if err != nil {
		// Every authorization failure, timeouts included, reads as a
		// decline: the reservation stays pending and retryable.
		return uuid.Nil, fmt.Errorf("%w: %s", domain.ErrPaymentDeclined, err)
	}
	return result.TxID, nil
}

func (s *PaymentService) refund(ctx context.Context, txID uuid.UUID) {
	if err := s.gateway.Refund(context.WithoutCancel(ctx), txID); err != nil {
		s.logger.Errorw("failed to refund authorization", "txId", txID, "error", err)
	}
}
