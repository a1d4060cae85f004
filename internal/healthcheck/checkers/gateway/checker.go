package gatewaychecker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/linkrelay/linkrelay/internal/discord"
	"github.com/linkrelay/linkrelay/internal/healthcheck"
)

const checkTypeGatewayConnection = "gateway.connection"

// ConnectionObserver reads the runtime gateway connection status.
type ConnectionObserver interface {
	Status() discord.ConnectionStatus
}

// Checker evaluates gateway connection health.
type Checker struct {
	logger   *slog.Logger
	observer ConnectionObserver
}

// NewChecker creates a gateway health checker.
func NewChecker(log *slog.Logger, observer ConnectionObserver) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_gateway")),
		observer: observer,
	}
}

// ListChecks reports a single result for the gateway connection.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	// Observer is context-free; best effort early cancellation guard.
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	if c.observer == nil {
		c.logger.Warn("gateway healthcheck dependency is unavailable")
		return []healthcheck.CheckResult{
			{
				ID:      checkTypeGatewayConnection,
				Type:    checkTypeGatewayConnection,
				Status:  healthcheck.StatusWarn,
				Summary: "Gateway checker is not available.",
				Detail:  "connection observer is nil",
			},
		}
	}

	status := c.observer.Status()
	item := healthcheck.CheckResult{
		ID:      checkTypeGatewayConnection,
		Type:    checkTypeGatewayConnection,
		Status:  healthcheck.StatusError,
		Summary: "Gateway connection is down.",
		Metadata: map[string]any{
			"running": status.Running,
		},
	}
	if status.UpdatedAt.Unix() > 0 {
		item.Metadata["updated_at"] = status.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	if status.Running {
		item.Status = healthcheck.StatusOK
		item.Summary = "Gateway is connected."
	} else if strings.TrimSpace(status.LastError) != "" {
		item.Summary = "Gateway connection failed."
		item.Detail = strings.TrimSpace(status.LastError)
	}
	return []healthcheck.CheckResult{item}
}
