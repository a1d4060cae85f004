package handlers

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsHandler struct {
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

func NewMetricsHandler(log *slog.Logger, gatherer prometheus.Gatherer) *MetricsHandler {
	return &MetricsHandler{
		logger:   log.With(slog.String("handler", "metrics")),
		gatherer: gatherer,
	}
}

func (h *MetricsHandler) Register(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{
		ErrorLog:      errorLog{h.logger},
		ErrorHandling: promhttp.ContinueOnError,
	})))
}

// errorLog routes promhttp gathering errors to slog.
type errorLog struct {
	logger *slog.Logger
}

func (l errorLog) Println(v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintln(v...)))
}
