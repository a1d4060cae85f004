package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/linkrelay/linkrelay/internal/healthcheck"
)

type HealthHandler struct {
	logger   *slog.Logger
	checkers []healthcheck.Checker
}

type HealthResponse struct {
	Status string                    `json:"status"`
	Checks []healthcheck.CheckResult `json:"checks"`
}

func NewHealthHandler(log *slog.Logger, checkers ...healthcheck.Checker) *HealthHandler {
	return &HealthHandler{
		logger:   log.With(slog.String("handler", "health")),
		checkers: checkers,
	}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
}

// Health reports all runtime checks. Any failing check turns the response
// into a 503 so orchestrators restart the process.
func (h *HealthHandler) Health(c echo.Context) error {
	checks, overall := h.run(c)
	return c.JSON(statusCode(overall), HealthResponse{Status: overall, Checks: checks})
}

func (h *HealthHandler) HealthHead(c echo.Context) error {
	_, overall := h.run(c)
	return c.NoContent(statusCode(overall))
}

func (h *HealthHandler) run(c echo.Context) ([]healthcheck.CheckResult, string) {
	checks, overall := healthcheck.Run(c.Request().Context(), h.checkers...)
	for _, check := range checks {
		if check.Status == healthcheck.StatusOK {
			continue
		}
		h.logger.Warn("health check not ok",
			slog.String("check", check.ID),
			slog.String("status", check.Status),
			slog.String("summary", check.Summary),
			slog.String("detail", check.Detail),
		)
	}
	return checks, overall
}

func statusCode(overall string) int {
	if overall == healthcheck.StatusError {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
