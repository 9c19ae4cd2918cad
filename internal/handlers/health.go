package handlers

import (
	"net/http"
	"runtime"
	"time"

	"hls-vault/internal/startup"
)

const (
	statusHealthy = "healthy"
)

var startTime = time.Now()

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Asset lifecycle summary
	Uploaded   int `json:"uploaded"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	stats := h.db.GetStats()

	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(startTime).Round(time.Second).String(),
		Uploaded:     stats.Uploaded,
		Processing:   stats.Processing,
		Completed:    stats.Completed,
		Failed:       stats.Failed,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// Liveness is a minimal liveness probe
func (h *Handlers) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, "alive")
}

// Readiness reports whether the service can accept work
func (h *Handlers) Readiness(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, "ready")
}
