package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
)

// mapError translates a domain error into the echo.HTTPError spec §6's
// propagation policy calls for: approval-not-found is a client error,
// validation failures are 400s, everything else not found is a 404,
// and anything unrecognized is a 500 logged server-side rather than
// leaked to the caller.
func mapError(err error) *echo.HTTPError {
	var verr *apperrors.ValidationError
	var swErr *apperrors.AgentSwitchError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.As(err, &swErr):
		return echo.NewHTTPError(http.StatusConflict, swErr.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, apperrors.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "already exists")
	case errors.Is(err, apperrors.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrApprovalRequired):
		return echo.NewHTTPError(http.StatusConflict, "approval required")
	case errors.Is(err, apperrors.ErrLocked):
		return echo.NewHTTPError(http.StatusConflict, "conversation locked")
	default:
		slog.Error("unhandled api error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
