package handler

import (
	"net/http"
	"runtime"
	"time"

	"questlog/internal/platform"
	"questlog/internal/response"
)

// StartTime tracks when the server started for uptime calculation.
var StartTime = time.Now()

// Handler contains the shared infrastructure handlers.
type Handler struct {
	registry *platform.Registry
}

func New(registry *platform.Registry) *Handler {
	return &Handler{registry: registry}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
	}
	response.OK(w, resp)
}

// Platforms handles GET /api/v1/platforms
func (h *Handler) Platforms(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.registry.List())
}

// StatusChecks represents the checks in the status response.
type StatusChecks struct {
	Platforms int     `json:"platforms"`
	MemoryMB  float64 `json:"memory_mb"`
}

// StatusResponse represents the unified status response for monitoring.
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	PingMS        int64        `json:"ping_ms"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	requestStart := time.Now()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	resp := StatusResponse{
		Service:       "questlog",
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(StartTime).Seconds()),
		PingMS:        time.Since(requestStart).Milliseconds(),
		Checks: StatusChecks{
			Platforms: len(h.registry.Tags()),
			MemoryMB:  float64(int(memoryMB*100)) / 100,
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
