// Package health exposes liveness and readiness endpoints. Readiness gates
// on the reference index so traffic never reaches an engine with no ledger.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/database"
)

// Checker handles health check endpoints
type Checker struct {
	db        database.DB
	redis     interface{ Ping(ctx context.Context) error }
	kafka     interface{ Health() bool }
	index     interface{ Ready() bool }
	version   string
	startTime time.Time
	ready     atomic.Bool
}

// NewChecker creates a new health checker. The kafka check is skipped when
// the consumer is disabled; pass nil for it in that case.
func NewChecker(
	db database.DB,
	redis interface{ Ping(ctx context.Context) error },
	kafka interface{ Health() bool },
	index interface{ Ready() bool },
	version string,
) *Checker {
	return &Checker{
		db:        db,
		redis:     redis,
		kafka:     kafka,
		index:     index,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health returns the overall health status
func (c *Checker) Health(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	status := &HealthStatus{
		Status:     "healthy",
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult),
		ReportedAt: time.Now(),
	}

	// Check database
	if c.db != nil {
		start := time.Now()
		err := c.db.PingContext(reqCtx)
		latency := time.Since(start)

		if err != nil {
			status.Status = "unhealthy"
			status.Checks["database"] = &CheckResult{
				Status:  "unhealthy",
				Message: err.Error(),
			}
		} else {
			status.Checks["database"] = &CheckResult{
				Status:  "healthy",
				Latency: latency.String(),
			}
		}
	} else {
		status.Status = "unhealthy"
		status.Checks["database"] = &CheckResult{
			Status:  "unhealthy",
			Message: "database not configured",
		}
	}

	// Check Redis if configured
	if c.redis != nil {
		start := time.Now()
		err := c.redis.Ping(reqCtx)
		latency := time.Since(start)

		if err != nil {
			status.Status = "unhealthy"
			status.Checks["redis"] = &CheckResult{
				Status:  "unhealthy",
				Message: err.Error(),
			}
		} else {
			status.Checks["redis"] = &CheckResult{
				Status:  "healthy",
				Latency: latency.String(),
			}
		}
	}

	// Check the Kafka consumer if one is running
	if c.kafka != nil {
		if c.kafka.Health() {
			status.Checks["kafka"] = &CheckResult{
				Status: "healthy",
			}
		} else {
			status.Status = "unhealthy"
			status.Checks["kafka"] = &CheckResult{
				Status:  "unhealthy",
				Message: "consumer not running",
			}
		}
	}

	// Check the reference index
	if c.index != nil {
		if c.index.Ready() {
			status.Checks["index"] = &CheckResult{
				Status: "healthy",
			}
		} else {
			status.Status = "unhealthy"
			status.Checks["index"] = &CheckResult{
				Status:  "unhealthy",
				Message: "reference index not loaded",
			}
		}
	}

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return ctx.JSON(httpStatus, status)
}

// Live returns the liveness status (is the service running)
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready returns the readiness status (is the service ready to accept traffic)
func (c *Checker) Ready(ctx echo.Context) error {
	if !c.ready.Load() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
	if c.index != nil && !c.index.Ready() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "index not loaded"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
