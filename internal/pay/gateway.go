// Package pay models the external card settlement step. The real card
// network is out of scope; the gateway contract keeps it swappable.
package pay

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDeclined covers every authorization failure, including timeouts: a
// charge that did not confirm in time is treated as failed, never pending.
var ErrDeclined = errors.New("card authorization declined")

type AuthRequest struct {
	ReservationID uuid.UUID
	CardNumber    string
	AmountCents   int64
}

type AuthResult struct {
	TxID uuid.UUID
}

// Gateway authorizes charges. Authorize must honor the context deadline.
// Refund compensates an authorized charge whose local commit failed.
type Gateway interface {
	Authorize(ctx context.Context, req AuthRequest) (AuthResult, error)
	Refund(ctx context.Context, txID uuid.UUID) error
}

// KnownFakeCard is the only card number the mock gateway authorizes.
const KnownFakeCard = "1234567890"

// MockGateway approves allowlisted cards instantly. Used in development and
// tests in place of a card network integration.
type MockGateway struct{}

func (MockGateway) Authorize(ctx context.Context, req AuthRequest) (AuthResult, error) {
	if err := ctx.Err(); err != nil {
		return AuthResult{}, fmt.Errorf("%w: %w", ErrDeclined, err)
	}
	if req.CardNumber != KnownFakeCard {
		return AuthResult{}, fmt.Errorf("%w: card is not in allowlist", ErrDeclined)
	}

	return AuthResult{TxID: uuid.New()}, nil
}

func (MockGateway) Refund(ctx context.Context, txID uuid.UUID) error {
	return nil
}

// ValidCardNumber is the pre-side-effect format check: digits only, a
// plausible PAN length. The gateway still decides whether to authorize.
func ValidCardNumber(card string) bool {
	if len(card) < 8 || len(card) > 19 {
		return false
	}
	for _, r := range card {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
