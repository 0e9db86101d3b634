package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/x1unix/thoughtly-ticket-booking/internal/app"
	"github.com/x1unix/thoughtly-ticket-booking/internal/domain"
)

func (srv *Server) handleReserveTickets(c *fiber.Ctx) error {
	var params eventIDRequest
	if err := c.ParamsParser(&params); err != nil {
		return errBadRequest(err)
	}

	var body ReserveTicketsRequest
	if err := c.BodyParser(&body); err != nil {
		return errBadRequest(err)
	}

	result, err := srv.reservations.CreateReservation(c.Context(), app.CreateReservationInput{
		ActorID:        body.ActorID,
		EventID:        params.EventID,
		IdempotencyKey: body.IdempotencyKey,
		TicketCounts:   body.TicketsCount,
	})
	if err != nil {
		return mapDomainError(err)
	}

	return c.JSON(ReserveTicketsResponse{
		ReservationID: result.ReservationID,
		ExpiresAt:     result.ExpiresAt,
	})
}

type userIDRequest struct {
	UserID uuid.UUID `params:"userID"`
}

func (srv *Server) handleListUserReservations(c *fiber.Ctx) error {
	var params userIDRequest
	if err := c.ParamsParser(&params); err != nil {
		return errBadRequest(err)
	}

	summaries, err := srv.reservations.GetUserReservations(c.Context(), params.UserID)
	if err != nil {
		return mapDomainError(err)
	}

	out := make([]ReservationResponse, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, ReservationResponse{
			ID:        summary.ID,
			EventID:   summary.EventID,
			EventName: summary.EventName,
			ExpiresAt: summary.ExpiresAt,
			IsPaid:    summary.Status == domain.ReservationStatusPaid,
		})
	}
	return c.JSON(ListReservationsResponse{Reservations: out})
}

type reservationIDRequest struct {
	ReservationID uuid.UUID `params:"reservationID"`
}

func (srv *Server) handleCancelReservation(c *fiber.Ctx) error {
	var params reservationIDRequest
	if err := c.ParamsParser(&params); err != nil {
		return errBadRequest(err)
	}

	var body CancelReservationRequest
	if err := c.BodyParser(&body); err != nil {
		return errBadRequest(err)
	}

	if err := srv.reservations.CancelReservation(c.Context(), body.ActorID, params.ReservationID); err != nil {
		return mapDomainError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
