package encounter

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/homevisit/homevisit/internal/platform/httperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/encounters/:id", h.Get)
	api.POST("/encounters/:id/triage", h.Triage)
	api.POST("/encounters/:id/begin", h.Begin)
	api.POST("/encounters/:id/pause", h.Pause)
	api.POST("/encounters/:id/resume", h.Resume)
	api.POST("/encounters/:id/finish", h.Finish)
	api.POST("/encounters/:id/cancel", h.Cancel)
	api.POST("/encounters/:id/services", h.AddService)

	api.POST("/encounters/:id/observations", h.RecordObservation)
	api.GET("/encounters/:id/observations", h.ListObservations)

	api.POST("/encounters/:id/deliveries", h.CreateDelivery)
	api.GET("/deliveries/:id", h.GetDelivery)
	api.POST("/deliveries/:id/start", h.StartDelivery)
	api.POST("/deliveries/:id/arrival", h.MarkDeliveryArrived)
	api.POST("/deliveries/:id/finish", h.FinishDelivery)
	api.POST("/deliveries/:id/cancel", h.CancelDelivery)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	enc, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, enc)
}

func (h *Handler) transition(c echo.Context, fn func(c echo.Context, id uuid.UUID) error) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := fn(c, id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Triage(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) error {
		return h.svc.Triage(c.Request().Context(), id)
	})
}

func (h *Handler) Begin(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) error {
		return h.svc.Begin(c.Request().Context(), id)
	})
}

func (h *Handler) Pause(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) error {
		return h.svc.Pause(c.Request().Context(), id)
	})
}

func (h *Handler) Resume(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) error {
		return h.svc.Resume(c.Request().Context(), id)
	})
}

func (h *Handler) Finish(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) error {
		return h.svc.Finish(c.Request().Context(), id)
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) error {
		return h.svc.Cancel(c.Request().Context(), id)
	})
}

type addServiceBody struct {
	ServiceID uuid.UUID `json:"service_id"`
}

func (h *Handler) AddService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body addServiceBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddService(c.Request().Context(), id, body.ServiceID); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Observations --

func (h *Handler) RecordObservation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var obs Observation
	if err := c.Bind(&obs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RecordObservation(c.Request().Context(), id, &obs); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, obs)
}

func (h *Handler) ListObservations(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	observations, err := h.svc.ListObservations(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, observations)
}

// -- Deliveries --

type deliveryBody struct {
	LabID       uuid.UUID   `json:"lab_id"`
	Description string      `json:"description"`
	ServiceIDs  []uuid.UUID `json:"service_ids"`
}

func (h *Handler) CreateDelivery(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body deliveryBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	del, err := h.svc.CreateDelivery(c.Request().Context(), id, body.LabID, body.Description, body.ServiceIDs)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, del)
}

func (h *Handler) GetDelivery(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	del, err := h.svc.GetDelivery(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, del)
}

func (h *Handler) StartDelivery(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) error {
		return h.svc.StartDelivery(c.Request().Context(), id)
	})
}

func (h *Handler) MarkDeliveryArrived(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) error {
		return h.svc.MarkDeliveryArrived(c.Request().Context(), id)
	})
}

func (h *Handler) FinishDelivery(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) error {
		return h.svc.FinishDelivery(c.Request().Context(), id)
	})
}

func (h *Handler) CancelDelivery(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) error {
		return h.svc.CancelDelivery(c.Request().Context(), id)
	})
}
