package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// PingResponse is the liveness body. Uptime is whole seconds since the
// handler was built.
type PingResponse struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime_seconds"`
}

// PingHandler answers liveness probes without touching the gateway.
type PingHandler struct {
	logger  *slog.Logger
	started time.Time
	now     func() time.Time
}

func NewPingHandler(log *slog.Logger) *PingHandler {
	return &PingHandler{
		logger:  log.With(slog.String("handler", "ping")),
		started: time.Now(),
		now:     time.Now,
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.ping)
	e.HEAD("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
}

func (h *PingHandler) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, PingResponse{
		Status: "ok",
		Uptime: int64(h.now().Sub(h.started) / time.Second),
	})
}
