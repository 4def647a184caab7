package scheduling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/homevisit/homevisit/internal/domain/registry"
	"github.com/homevisit/homevisit/internal/platform/httperr"
	"github.com/homevisit/homevisit/pkg/pagination"
)

type Handler struct {
	booking *Booking
	matcher *Matcher
}

func NewHandler(booking *Booking, matcher *Matcher) *Handler {
	return &Handler{booking: booking, matcher: matcher}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/service-requests", h.CreateRequest)
	api.GET("/service-requests/:id", h.GetRequest)
	api.POST("/service-requests/:id/activate", h.ActivateRequest)
	api.POST("/service-requests/:id/suspend", h.SuspendRequest)
	api.POST("/service-requests/:id/cancel", h.CancelRequest)
	api.GET("/service-requests/:id/proposals", h.ListProposals)

	api.POST("/appointments", h.ProposeAppointment)
	api.GET("/appointments/:id", h.GetAppointment)
	api.POST("/appointments/:id/confirm", h.ConfirmAppointment)
	api.POST("/appointments/:id/arrival", h.RecordArrival)
	api.POST("/appointments/:id/complete", h.CompleteAppointment)
	api.POST("/appointments/:id/cancel", h.CancelAppointment)
	api.POST("/appointments/:id/noshow", h.MarkNoShow)
	api.POST("/appointments/:id/entered-in-error", h.MarkEnteredInError)

	api.GET("/patients/:id/appointments", h.ListPatientAppointments)
	api.GET("/patients/:id/service-requests", h.ListPatientRequests)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Service requests --

func (h *Handler) CreateRequest(c echo.Context) error {
	var req ServiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.booking.CreateRequest(c.Request().Context(), &req); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	req, err := h.booking.GetRequest(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) ActivateRequest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.booking.ActivateRequest(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SuspendRequest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.booking.SuspendRequest(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type cancelBody struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelRequest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body cancelBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.booking.CancelRequest(c.Request().Context(), id, body.Reason); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListProposals runs the matcher for an active service request and returns
// ranked candidate slots without creating anything.
func (h *Handler) ListProposals(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	req, err := h.booking.GetRequest(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	proposals, err := h.matcher.Propose(c.Request().Context(), req)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, proposals)
}

// -- Appointments --

type proposeBody struct {
	ServiceRequestID uuid.UUID       `json:"service_request_id"`
	MedTechID        uuid.UUID       `json:"med_tech_id"`
	Period           registry.Period `json:"period"`
}

func (h *Handler) ProposeAppointment(c echo.Context) error {
	var body proposeBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.booking.Propose(c.Request().Context(), body.ServiceRequestID, body.MedTechID, body.Period)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	appt, err := h.booking.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ConfirmAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.booking.Confirm(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RecordArrival(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	enc, err := h.booking.RecordArrival(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, enc)
}

func (h *Handler) CompleteAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.booking.Complete(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body cancelBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.booking.Cancel(c.Request().Context(), id, body.Reason); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.booking.MarkNoShow(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkEnteredInError(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.booking.MarkEnteredInError(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Patient views --

func (h *Handler) ListPatientAppointments(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	appts, total, err := h.booking.deps.Appointments.ListByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListPatientRequests(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	reqs, total, err := h.booking.deps.Requests.ListByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reqs, total, pg.Limit, pg.Offset))
}
