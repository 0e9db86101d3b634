package http

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/x1unix/thoughtly-ticket-booking/internal/domain"
	"github.com/x1unix/thoughtly-ticket-booking/internal/idempotency"
)

// mapDomainError converts booking core errors to fiber errors so the
// central error handler can render them. Unknown errors pass through and
// surface as 500s.
func mapDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrTierNotFound),
		errors.Is(err, domain.ErrReservationNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrEmptySelection),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrIdempotencyKeyRequired),
		errors.Is(err, domain.ErrActorRequired),
		errors.Is(err, domain.ErrEventNameRequired),
		errors.Is(err, domain.ErrInvalidCard):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case domain.IsInsufficientTicketsError(err),
		errors.Is(err, domain.ErrIdempotencyConflict),
		errors.Is(err, domain.ErrReservationExpired),
		errors.Is(err, domain.ErrReservationCancelled),
		errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, idempotency.ErrRequestInFlight):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrPaymentDeclined):
		return fiber.NewError(http.StatusPaymentRequired, err.Error())
	default:
		return err
	}
}

func errBadRequest(err error) error {
	return fiber.NewError(http.StatusBadRequest, err.Error())
}
