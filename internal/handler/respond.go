package handler // HTTP handlers for the circulation API

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-circulation/internal/repository"
	"github.com/iliyamo/library-circulation/internal/service"
)

// respondError maps the service and repository error families onto HTTP
// statuses. Anything unrecognized is logged and reported as a 500
// without leaking internals.
func respondError(c echo.Context, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrNoAvailableCopy):
		return c.JSON(http.StatusConflict, echo.Map{"error": "no available copy"})
	case errors.Is(err, repository.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid state transition"})
	case errors.Is(err, repository.ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflicting concurrent update, retry"})
	case errors.Is(err, service.ErrAlreadyReturned):
		return c.JSON(http.StatusConflict, echo.Map{"error": "loan already returned"})
	case errors.Is(err, service.ErrAlreadyResolved):
		return c.JSON(http.StatusConflict, echo.Map{"error": "report already resolved"})
	case errors.Is(err, service.ErrOpenReportExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "an open report already exists for this copy"})
	case errors.Is(err, service.ErrNoActiveLoan):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "no active loan for this copy and patron"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, error) {
	return parseUint(c.Param("id"))
}
