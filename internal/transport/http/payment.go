package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var errReservationIDMismatch = errors.New("reservationID in body does not match the URL")

func (srv *Server) handleSettlePayment(c *fiber.Ctx) error {
	var params reservationIDRequest
	if err := c.ParamsParser(&params); err != nil {
		return errBadRequest(err)
	}

	var body PaymentRequest
	if err := c.BodyParser(&body); err != nil {
		return errBadRequest(err)
	}
	if body.ReservationID != uuid.Nil && body.ReservationID != params.ReservationID {
		return errBadRequest(errReservationIDMismatch)
	}

	payment, err := srv.payments.Settle(c.Context(), body.ActorID, params.ReservationID, body.CardNumber)
	if err != nil {
		return mapDomainError(err)
	}

	return c.JSON(PaymentResponse{
		TxID:        payment.TxID,
		AmountCents: payment.AmountCents,
	})
}
