// Package httperr maps domain errors onto HTTP responses so handlers do
// not repeat the translation.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/homevisit/homevisit/internal/domain/fault"
)

// From converts a domain error into an echo HTTPError. Unknown errors map
// to 500 without leaking internals.
func From(err error) *echo.HTTPError {
	var (
		validation *fault.ValidationError
		conflict   *fault.ConflictError
		transition *fault.InvalidTransitionError
		stale      *fault.StaleTransitionError
		schedule   *fault.InvalidScheduleError
		missing    *fault.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, validation.Error())
	case errors.As(err, &schedule):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, schedule.Error())
	case errors.As(err, &conflict):
		return echo.NewHTTPError(http.StatusConflict, conflict.Error())
	case errors.As(err, &transition):
		return echo.NewHTTPError(http.StatusConflict, transition.Error())
	case errors.As(err, &stale):
		return echo.NewHTTPError(http.StatusConflict, stale.Error())
	case errors.As(err, &missing):
		return echo.NewHTTPError(http.StatusNotFound, missing.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
