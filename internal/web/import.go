package web

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/conorfennell/qbank/internal/importer"
)

type importIn struct {
	Path string `json:"path" validate:"required"`
}

func (s *Server) handleImport(c echo.Context) error {
	var payload importIn
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&payload); err != nil {
		return err
	}

	res, err := importer.Run(c.Request().Context(), s.db, ownerID(c), payload.Path, s.cfg.DataDir)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, res)
}
