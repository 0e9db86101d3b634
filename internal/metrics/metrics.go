// Package metrics exposes the booking core's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ReservationsCreated   prometheus.Counter
	ReservationsExpired   prometheus.Counter
	ReservationsCancelled prometheus.Counter
	ReservationsRejected  prometheus.Counter
	PaymentsSettled       prometheus.Counter
	PaymentsFailed        prometheus.Counter
	SweepPasses           prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReservationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_reservations_created_total",
			Help: "Reservations successfully created (idempotent replays excluded).",
		}),
		ReservationsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_reservations_expired_total",
			Help: "Pending reservations released by the expiry sweeper or lazily.",
		}),
		ReservationsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_reservations_cancelled_total",
			Help: "Pending reservations cancelled by their owner.",
		}),
		ReservationsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_reservations_rejected_total",
			Help: "Reservation attempts rejected for insufficient inventory.",
		}),
		PaymentsSettled: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_payments_settled_total",
			Help: "Payments settled (idempotent replays excluded).",
		}),
		PaymentsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_payments_failed_total",
			Help: "Card authorizations declined or timed out.",
		}),
		SweepPasses: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_sweep_passes_total",
			Help: "Completed expiry sweeper passes.",
		}),
	}
}
