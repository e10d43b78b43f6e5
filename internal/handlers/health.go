package handlers

import (
	"net/http"
	"runtime"
	"time"

	"booklib/internal/library"
	"booklib/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Building  bool   `json:"building"`
	Searching bool   `json:"searching"`
	LastBuild string `json:"lastBuild,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalBooks   int `json:"totalBooks"`
	TotalAuthors int `json:"totalAuthors"`
}

// ready reports whether the first build has completed.
func (h *Handlers) ready() bool {
	return !h.lib.LastBuild().IsZero()
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	status := h.lib.Status()
	stats := h.lib.Stats()
	lastBuild := h.lib.LastBuild()

	response := HealthResponse{
		Status:       statusStarting,
		Ready:        !lastBuild.IsZero(),
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Building:     status&library.StatusLoading != 0,
		Searching:    status&library.StatusSearching != 0,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
		TotalBooks:   stats.TotalBooks,
		TotalAuthors: stats.TotalAuthors,
	}

	code := http.StatusServiceUnavailable
	if response.Ready {
		response.Status = statusHealthy
		response.LastBuild = lastBuild.Format(time.RFC3339)
		code = http.StatusOK
	}
	writeJSONCode(w, response, code)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only once the library has been built
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready() {
		writeJSONCode(w, map[string]string{"status": "ready"}, http.StatusOK)
		return
	}
	writeJSONCode(w, map[string]string{"status": "not_ready"}, http.StatusServiceUnavailable)
}
