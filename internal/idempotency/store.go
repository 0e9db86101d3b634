// Package idempotency implements the claim protocol that makes reservation
// creation safe to retry: the first request for an (actor, key) pair claims
// the key, finishes its work and publishes the result; every later request
// replays that result instead of reserving again.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrRequestInFlight means another request holds an unfinished claim for
	// the same (actor, key). The caller should be told to retry shortly; it
	// must never proceed to create a second reservation.
	ErrRequestInFlight = errors.New("request with the same idempotency key is in flight")

	// ErrClaimLost means the claim no longer belongs to the caller (expired
	// or finished elsewhere). Safe to ignore: the durable uniqueness
	// constraint in Postgres backstops the replay.
	ErrClaimLost = errors.New("idempotency claim is no longer held")
)

// Result is the cached outcome of a completed reservation request. Replays
// return it unchanged even after the reservation itself expires: the record
// protects against duplicate creation, not duplicate state.
type Result struct {
	ReservationID uuid.UUID `json:"reservationID"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Claim is the ticket handed to the single request allowed to do the work.
// Its holder must eventually call Complete or Abandon.
type Claim struct {
	Key   string
	Token string
}

const (
	claimPrefix  = "claim:"
	resultPrefix = "done:"

	// defaultClaimTTL caps how long a crashed holder can block retries.
	defaultClaimTTL = time.Minute
)

// Values are compared against the caller's token so only the claim holder
// can finish or drop a claim; a stranger's complete/abandon is a no-op.
var (
	claimScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
	return v
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return ''
`)

	completeScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
end
return 0
`)

	abandonScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	redis.call('DEL', KEYS[1])
	return 1
end
return 0
`)
)

type Store struct {
	rdb       redis.UniversalClient
	retention time.Duration
	claimTTL  time.Duration
}

type StoreOption func(*Store)

// WithClaimTTL overrides how long an unfinished claim blocks duplicates.
func WithClaimTTL(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.claimTTL = d
		}
	}
}

// NewStore builds a Redis-backed store. Completed results are retained for
// the given duration, which must cover the reservation TTL so that slow
// client retries still hit the cache.
func NewStore(rdb redis.UniversalClient, retention time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		rdb:       rdb,
		retention: retention,
		claimTTL:  defaultClaimTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrClaim returns the cached result for (actor, key), or hands out a
// fresh claim when the pair is unseen. A concurrent caller that finds an
// unfinished claim gets ErrRequestInFlight.
func (s *Store) GetOrClaim(ctx context.Context, actorID uuid.UUID, key string) (*Result, *Claim, error) {
	redisKey := storeKey(actorID, key)
	token := claimPrefix + uuid.NewString()

	raw, err := claimScript.Run(ctx, s.rdb, []string{redisKey}, token, s.claimTTL.Milliseconds()).Text()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	switch {
	case raw == "":
		return nil, &Claim{Key: redisKey, Token: token}, nil
	case len(raw) > len(resultPrefix) && raw[:len(resultPrefix)] == resultPrefix:
		result := &Result{}
		if err := json.Unmarshal([]byte(raw[len(resultPrefix):]), result); err != nil {
			return nil, nil, fmt.Errorf("corrupt idempotency record for %q: %w", redisKey, err)
		}
		return result, nil, nil
	default:
		return nil, nil, ErrRequestInFlight
	}
}

// Complete publishes the result under the claimed key and starts the
// retention window.
func (s *Store) Complete(ctx context.Context, claim *Claim, result Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency result: %w", err)
	}

	ok, err := completeScript.Run(
		ctx, s.rdb,
		[]string{claim.Key},
		claim.Token, resultPrefix+string(payload), s.retention.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to complete idempotency claim: %w", err)
	}
	if ok == 0 {
		return ErrClaimLost
	}
	return nil
}

// Abandon drops the claim so a future retry is free to try again.
func (s *Store) Abandon(ctx context.Context, claim *Claim) error {
	ok, err := abandonScript.Run(ctx, s.rdb, []string{claim.Key}, claim.Token).Int()
	if err != nil {
		return fmt.Errorf("failed to abandon idempotency claim: %w", err)
	}
	if ok == 0 {
		return ErrClaimLost
	}
	return nil
}

func storeKey(actorID uuid.UUID, key string) string {
	return "idem:" + actorID.String() + ":" + key
}
