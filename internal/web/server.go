// Package web is the HTTP surface: echo routing, JWT cookie auth,
// request validation, and JSON marshalling around the storage and
// scheduler packages.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/conorfennell/qbank/internal/config"
	"github.com/conorfennell/qbank/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	cfg  *config.Config
	db   *storage.DB
	echo *echo.Echo
}

// NewServer creates and configures a new server.
func NewServer(cfg *config.Config, db *storage.DB) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &payloadValidator{validate: validator.New()}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogMethod: true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				slog.Warn("request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "error", v.Error)
			} else {
				slog.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status)
			}
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
	}))

	s := &Server{cfg: cfg, db: db, echo: e}
	s.routes()
	return s
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	e := s.echo
	e.GET("/healthz", s.handleHealth)

	auth := e.Group("/v1/auth")
	auth.POST("/register", s.handleRegister)
	auth.POST("/login", s.handleLogin)
	auth.POST("/refresh", s.handleRefresh)
	auth.POST("/logout", s.handleLogout)
	auth.GET("/me", s.handleMe, s.requireUser)

	questions := e.Group("/v1/questions", s.requireUser)
	questions.POST("", s.handleCreateQuestion)
	questions.GET("", s.handleListQuestions)
	questions.GET("/:id", s.handleGetQuestion)
	questions.PATCH("/:id", s.handleUpdateQuestion)
	questions.DELETE("/:id", s.handleDeleteQuestion)
	questions.POST("/:id/review", s.handleReviewQuestion)

	e.GET("/v1/dashboard/stats", s.handleDashboardStats, s.requireUser)
	e.POST("/v1/import", s.handleImport, s.requireUser)
}

// Start begins serving on the configured address, blocking until the
// server stops.
func (s *Server) Start() error {
	return s.echo.Start(s.cfg.ListenAddr())
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// payloadValidator adapts go-playground/validator to echo's Validator
// interface.
type payloadValidator struct {
	validate *validator.Validate
}

func (v *payloadValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
