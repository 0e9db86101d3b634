package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/x1unix/thoughtly-ticket-booking/internal/app"
)

func (srv *Server) handleCreateEvent(c *fiber.Ctx) error {
	var req EventCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadRequest(err)
	}

	in := app.CreateEventInput{Name: req.EventName}
	for name, tier := range req.Tiers {
		in.Tiers = append(in.Tiers, app.CreateTierInput{
			Name:       name,
			PriceCents: tier.PriceCents,
			TotalCount: tier.TicketsCount,
		})
	}

	created, err := srv.catalog.CreateEvent(c.Context(), in)
	if err != nil {
		return mapDomainError(err)
	}

	return c.JSON(EventCreateResponse{
		EventID: created.Event.ID,
		Tiers:   created.TierIDs,
	})
}

func (srv *Server) handleListEvents(c *fiber.Ctx) error {
	events, err := srv.catalog.ListEvents(c.Context())
	if err != nil {
		return mapDomainError(err)
	}

	out := make([]EventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, EventResponse{ID: event.ID, Name: event.Name})
	}
	return c.JSON(ListEventsResponse{Events: out})
}

type eventIDRequest struct {
	EventID uuid.UUID `params:"eventID"`
}

func (srv *Server) handleListTiers(c *fiber.Ctx) error {
	var params eventIDRequest
	if err := c.ParamsParser(&params); err != nil {
		return errBadRequest(err)
	}

	tiers, err := srv.catalog.ListTiers(c.Context(), params.EventID)
	if err != nil {
		return mapDomainError(err)
	}

	out := make([]TierResponse, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, TierResponse{
			TierID:         tier.TierID,
			Name:           tier.Name,
			PriceCents:     tier.PriceCents,
			AvailableCount: tier.AvailableCount,
		})
	}
	return c.JSON(ListTiersResponse{Tiers: out})
}
