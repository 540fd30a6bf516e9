package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/mstgnz/paybox/infra/response"
)

// Pinger is anything whose reachability can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	database    Pinger
	ledger      Pinger
	environment string
	startTime   time.Time
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status      string                    `json:"status"`
	Version     string                    `json:"version"`
	Timestamp   time.Time                 `json:"timestamp"`
	Uptime      string                    `json:"uptime"`
	Environment string                    `json:"environment"`
	Services    map[string]*ServiceHealth `json:"services"`
	System      *SystemHealth             `json:"system"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status       string `json:"status"`
	Healthy      bool   `json:"healthy"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// SystemHealth represents process resource usage
type SystemHealth struct {
	Alloc      string `json:"alloc"`
	Sys        string `json:"sys"`
	GCRuns     uint32 `json:"gc_runs"`
	GoRoutines int    `json:"goroutines"`
}

// NewHealthHandler creates a new health handler. ledger may be nil when
// callback claims live in the database.
func NewHealthHandler(database, ledger Pinger, environment string) *HealthHandler {
	return &HealthHandler{
		database:    database,
		ledger:      ledger,
		environment: environment,
		startTime:   time.Now(),
	}
}

// CheckHealth pings the database and the callback ledger
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:      "healthy",
		Version:     "1.0.0",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).String(),
		Environment: h.environment,
		Services: map[string]*ServiceHealth{
			"database": checkService(ctx, h.database),
		},
		System: checkSystem(),
	}
	if h.ledger != nil {
		health.Services["callback_ledger"] = checkService(ctx, h.ledger)
	}

	for _, service := range health.Services {
		if !service.Healthy {
			health.Status = "unhealthy"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	_ = response.WriteJSON(w, statusCode, response.Response{
		Code:    statusCode,
		Success: health.Status == "healthy",
		Message: fmt.Sprintf("Service is %s", health.Status),
		Data:    health,
	})
}

func checkService(ctx context.Context, p Pinger) *ServiceHealth {
	if p == nil {
		return &ServiceHealth{Status: "not_configured", Error: "not configured"}
	}

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return &ServiceHealth{
			Status:       "unhealthy",
			ResponseTime: fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
			Error:        err.Error(),
		}
	}

	return &ServiceHealth{
		Status:       "healthy",
		Healthy:      true,
		ResponseTime: fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
	}
}

func checkSystem() *SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &SystemHealth{
		Alloc:      formatBytes(memStats.Alloc),
		Sys:        formatBytes(memStats.Sys),
		GCRuns:     memStats.NumGC,
		GoRoutines: runtime.NumGoroutine(),
	}
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
