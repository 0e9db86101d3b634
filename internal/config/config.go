// Package config provides app configuration primitives.
package config

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

type HTTPConfig struct {
	ListenAddress string `envconfig:"LISTEN_ADDR" default:":8080"`
	CORSOrigins   string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`
}

type DBConfig struct {
	URL string `required:"true"`
}

func (cfg DBConfig) NewPgxPool(ctx context.Context) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to build Postgres client: %w", err)
	}

	return conn, nil
}

type RedisConfig struct {
	URL            string        `required:"true"`
	ConnectTimeout time.Duration `default:"10s"`
}

func (cfg RedisConfig) NewRedisClient(ctx context.Context) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	err = doWithTimeoutCtx(ctx, cfg.ConnectTimeout, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return rdb, nil
}

func doWithTimeoutCtx(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	opCtx, cancelFn := context.WithTimeout(ctx, timeout)
	defer cancelFn()

	return fn(opCtx)
}

// BookingConfig holds the knobs of the reservation core.
type BookingConfig struct {
	// ReservationTTL is how long a pending reservation keeps its hold.
	ReservationTTL time.Duration `envconfig:"RESERVATION_TTL" default:"15m"`

	// SweepInterval is the pause between expiry sweeper passes.
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"5s"`

	// SweepBatchSize bounds how many due reservations one pass expires at once.
	SweepBatchSize int `envconfig:"SWEEP_BATCH_SIZE" default:"500"`

	// AuthTimeout bounds the card authorization call; timeout counts as failure.
	AuthTimeout time.Duration `envconfig:"AUTH_TIMEOUT" default:"3s"`

	// IdempotencyRetention must stay above ReservationTTL so late client
	// retries still replay the original result.
	IdempotencyRetention time.Duration `envconfig:"IDEMPOTENCY_RETENTION" default:"24h"`
}

func (cfg BookingConfig) Validate() error {
	if cfg.ReservationTTL <= 0 {
		return fmt.Errorf("reservation TTL must be positive, got %s", cfg.ReservationTTL)
	}
	if cfg.IdempotencyRetention < cfg.ReservationTTL {
		return fmt.Errorf(
			"idempotency retention %s is below reservation TTL %s",
			cfg.IdempotencyRetention, cfg.ReservationTTL,
		)
	}
	if cfg.SweepBatchSize <= 0 {
		return fmt.Errorf("sweep batch size must be positive, got %d", cfg.SweepBatchSize)
	}
	return nil
}

type Config struct {
	HTTP    HTTPConfig    `envconfig:"HTTP"`
	DB      DBConfig      `envconfig:"DB"`
	Redis   RedisConfig   `envconfig:"REDIS"`
	Booking BookingConfig `envconfig:"BOOKING"`
	Log     LogConfig     `envconfig:"LOG"`
}

// LoadEnvFile populates environment variables from env file (if specified in a flag).
func LoadEnvFile() error {
	var envFilePath string
	flag.StringVar(&envFilePath, "e", "", "Path to env file to load (optional)")
	flag.Parse()
	if envFilePath == "" {
		return nil
	}

	err := godotenv.Load(envFilePath)
	if err != nil {
		return fmt.Errorf("failed to load env from file %q: %w", envFilePath, err)
	}

	return nil
}

// FromEnv loads and returns config from environment variables.
func FromEnv() (*Config, error) {
	cfg := &Config{}

	err := envconfig.Process("APP", cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Booking.Validate(); err != nil {
		return nil, fmt.Errorf("invalid booking config: %w", err)
	}

	return cfg, nil
}

// DBConfigFromEnv loads only the database section, for tools that need
// nothing else.
func DBConfigFromEnv() (DBConfig, error) {
	cfg := DBConfig{}
	if err := envconfig.Process("APP_DB", &cfg); err != nil {
		return DBConfig{}, fmt.Errorf("failed to load DB config: %w", err)
	}
	return cfg, nil
}
