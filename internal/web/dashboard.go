package web

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleDashboardStats(c echo.Context) error {
	stats, err := s.db.DashboardStats(c.Request().Context(), ownerID(c), time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
