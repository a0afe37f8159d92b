package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/conorfennell/qbank/internal/scheduler"
	"github.com/conorfennell/qbank/internal/storage"
)

// mapError translates domain and storage errors into client-facing
// HTTP errors; anything unrecognized propagates as a 500.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "question not found")
	case errors.Is(err, storage.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	case errors.Is(err, scheduler.ErrInvalidRating):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
