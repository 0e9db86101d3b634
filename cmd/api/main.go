package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/x1unix/thoughtly-ticket-booking/internal/app"
	"github.com/x1unix/thoughtly-ticket-booking/internal/clock"
	"github.com/x1unix/thoughtly-ticket-booking/internal/config"
	"github.com/x1unix/thoughtly-ticket-booking/internal/idempotency"
	"github.com/x1unix/thoughtly-ticket-booking/internal/metrics"
	"github.com/x1unix/thoughtly-ticket-booking/internal/pay"
	"github.com/x1unix/thoughtly-ticket-booking/internal/storage/postgres"
	transporthttp "github.com/x1unix/thoughtly-ticket-booking/internal/transport/http"
	"github.com/x1unix/thoughtly-ticket-booking/migrations"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		die(err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		die(err)
	}

	logger, err := cfg.Log.BuildZapLogger()
	if err != nil {
		die(err)
	}

	defer logger.Sync()
	if err := run(logger, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}

		logger.Sugar().Fatal(err)
	}
}

func die(args ...any) {
	msg := make([]any, 1, len(args)+1)
	msg[0] = "Error: "
	msg = append(msg, args...)
	fmt.Fprintln(os.Stderr, msg...)
	os.Exit(1)
}

func run(logger *zap.Logger, cfg *config.Config) error {
	ctx, cancelFn := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelFn()

	log := logger.Sugar()

	if err := migrations.Apply(ctx, cfg.DB.URL); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	pool, err := cfg.DB.NewPgxPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}

	rdb, err := cfg.Redis.NewRedisClient(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	clk := clock.NewSystem()
	bookingRepo := postgres.NewBookingRepository(pool)
	catalogRepo := postgres.NewCatalogRepository(pool)
	idemStore := idempotency.NewStore(rdb, cfg.Booking.IdempotencyRetention)

	reservations := app.NewReservationService(
		bookingRepo, idemStore, clk, m, log,
		app.WithReservationTTL(cfg.Booking.ReservationTTL),
	)
	payments := app.NewPaymentService(
		bookingRepo, pay.MockGateway{}, clk, m, log,
		app.WithAuthTimeout(cfg.Booking.AuthTimeout),
	)
	catalog := app.NewCatalogService(catalogRepo, clk)
	sweeper := app.NewSweeper(
		bookingRepo, clk, m, log,
		app.WithSweepInterval(cfg.Booking.SweepInterval),
		app.WithSweepBatchSize(cfg.Booking.SweepBatchSize),
	)

	srv := transporthttp.NewServer(log, cfg.HTTP, catalog, reservations, payments, registry)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gCtx)
	})
	g.Go(func() error {
		return sweeper.Run(gCtx)
	})
	return g.Wait()
}
