package registry

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/homevisit/homevisit/internal/platform/httperr"
	"github.com/homevisit/homevisit/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.RegisterPatient)
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.DELETE("/patients/:id", h.DeactivatePatient)

	api.POST("/practitioners", h.RegisterPractitioner)
	api.GET("/practitioners/:id", h.GetPractitioner)

	api.POST("/medtechs", h.RegisterMedTech)
	api.GET("/medtechs", h.ListMedTechs)
	api.GET("/medtechs/:id", h.GetMedTech)
	api.PUT("/medtechs/:id/schedule", h.UpdateMedTechSchedule)
	api.DELETE("/medtechs/:id", h.DeactivateMedTech)

	api.POST("/locations", h.RegisterLocation)
	api.GET("/locations/:id", h.GetLocation)

	api.POST("/organizations", h.RegisterOrganization)
	api.GET("/organizations/:id", h.GetOrganization)

	api.POST("/services", h.RegisterServiceDef)
	api.GET("/services", h.ListServiceDefs)
	api.GET("/services/:id", h.GetServiceDef)

	api.POST("/devices", h.RegisterDevice)
	api.GET("/devices/:id", h.GetDevice)

	api.POST("/laboratories", h.RegisterLaboratory)
	api.GET("/laboratories/:id", h.GetLaboratory)
	api.DELETE("/laboratories/:id", h.DeactivateLaboratory)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Patients --

func (h *Handler) RegisterPatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterPatient(c.Request().Context(), &p); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeactivatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivatePatient(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Practitioners --

func (h *Handler) RegisterPractitioner(c echo.Context) error {
	var p Practitioner
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterPractitioner(c.Request().Context(), &p); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPractitioner(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPractitioner(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, p)
}

// -- Med techs --

func (h *Handler) RegisterMedTech(c echo.Context) error {
	var m MedTech
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterMedTech(c.Request().Context(), &m); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedTech(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedTech(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedTechs(c echo.Context) error {
	pg := pagination.FromContext(c)
	medTechs, total, err := h.svc.ListMedTechs(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(medTechs, total, pg.Limit, pg.Offset))
}

type scheduleUpdate struct {
	Schedule       Period   `json:"schedule"`
	Availabilities []Period `json:"availabilities"`
}

func (h *Handler) UpdateMedTechSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var upd scheduleUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateMedTechSchedule(c.Request().Context(), id, upd.Schedule, upd.Availabilities); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeactivateMedTech(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateMedTech(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Locations --

func (h *Handler) RegisterLocation(c echo.Context) error {
	var l Location
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterLocation(c.Request().Context(), &l); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) GetLocation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	l, err := h.svc.GetLocation(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, l)
}

// -- Organizations --

func (h *Handler) RegisterOrganization(c echo.Context) error {
	var o Organization
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterOrganization(c.Request().Context(), &o); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOrganization(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.GetOrganization(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, o)
}

// -- Healthcare services --

func (h *Handler) RegisterServiceDef(c echo.Context) error {
	var def HealthcareService
	if err := c.Bind(&def); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterServiceDef(c.Request().Context(), &def); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, def)
}

func (h *Handler) GetServiceDef(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	def, err := h.svc.GetServiceDef(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, def)
}

func (h *Handler) ListServiceDefs(c echo.Context) error {
	pg := pagination.FromContext(c)
	defs, total, err := h.svc.ListServiceDefs(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(defs, total, pg.Limit, pg.Offset))
}

// -- Devices --

func (h *Handler) RegisterDevice(c echo.Context) error {
	var d Device
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterDevice(c.Request().Context(), &d); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDevice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDevice(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, d)
}

// -- Laboratories --

func (h *Handler) RegisterLaboratory(c echo.Context) error {
	var l Laboratory
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterLaboratory(c.Request().Context(), &l); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) GetLaboratory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	l, err := h.svc.GetLaboratory(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) DeactivateLaboratory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateLaboratory(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}
