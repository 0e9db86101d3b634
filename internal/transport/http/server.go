// Package http exposes the booking core over the storefront's JSON API.
package http

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberRecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/x1unix/thoughtly-ticket-booking/internal/app"
	"github.com/x1unix/thoughtly-ticket-booking/internal/config"
	"github.com/x1unix/thoughtly-ticket-booking/internal/domain"
)

const (
	shutdownTimeout = 5 * time.Second
	idleTimeout     = 10 * time.Second
)

type CatalogService interface {
	CreateEvent(ctx context.Context, in app.CreateEventInput) (app.CreateEventResult, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	ListTiers(ctx context.Context, eventID uuid.UUID) ([]domain.TierSummary, error)
}

type ReservationService interface {
	CreateReservation(ctx context.Context, in app.CreateReservationInput) (app.CreateReservationResult, error)
	CancelReservation(ctx context.Context, actorID, reservationID uuid.UUID) error
	GetUserReservations(ctx context.Context, actorID uuid.UUID) ([]domain.ReservationSummary, error)
}

type PaymentService interface {
	Settle(ctx context.Context, actorID, reservationID uuid.UUID, cardNumber string) (domain.Payment, error)
}

type Server struct {
	logger       *zap.SugaredLogger
	cfg          config.HTTPConfig
	catalog      CatalogService
	reservations ReservationService
	payments     PaymentService
	app          *fiber.App
}

func NewServer(
	logger *zap.SugaredLogger,
	cfg config.HTTPConfig,
	catalog CatalogService,
	reservations ReservationService,
	payments PaymentService,
	gatherer prometheus.Gatherer,
) *Server {
	srv := &Server{
		logger:       logger,
		cfg:          cfg,
		catalog:      catalog,
		reservations: reservations,
		payments:     payments,
	}

	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		IdleTimeout:           idleTimeout,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          srv.handleError,
	})

	fiberApp.Use(fiberRecover.New())
	fiberApp.Use(requestLogger(logger))
	if cfg.CORSOrigins != "" {
		fiberApp.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Content-Type",
		}))
	}

	srv.mountRoutes(fiberApp, gatherer)
	srv.app = fiberApp
	return srv
}

func (srv *Server) mountRoutes(fiberApp *fiber.App, gatherer prometheus.Gatherer) {
	fiberApp.Get("/api/ping", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	if gatherer != nil {
		fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// Admin and test support
	fiberApp.Post("/api/events", srv.handleCreateEvent)

	// Storefront API
	fiberApp.Get("/api/events", srv.handleListEvents)
	fiberApp.Get("/api/events/:eventID/tiers", srv.handleListTiers)
	fiberApp.Post("/api/events/:eventID/reserve", srv.handleReserveTickets)
	fiberApp.Get("/api/users/:userID/reservations", srv.handleListUserReservations)
	fiberApp.Post("/api/reservations/:reservationID/payment", srv.handleSettlePayment)
	fiberApp.Post("/api/reservations/:reservationID/cancel", srv.handleCancelReservation)
}

// Run serves until the context is cancelled, then drains in-flight
// requests before returning.
func (srv *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		srv.logger.Infof("listening on %q", srv.cfg.ListenAddress)
		errCh <- srv.app.Listen(srv.cfg.ListenAddress)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := srv.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		srv.logger.Errorw("shutdown did not drain cleanly", "error", err)
	}
	return ctx.Err()
}

func (srv *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	if code == fiber.StatusInternalServerError {
		srv.logger.Errorw("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(&ErrorResponse{
		Error: err.Error(),
	})
}
