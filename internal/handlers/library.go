package handlers

import (
	"net/http"
	"strconv"
	"time"

	"booklib/internal/library"
	"booklib/internal/logging"
	"booklib/internal/metrics"
)

// StatsResponse summarises the library.
type StatsResponse struct {
	metrics.Stats
	Building  bool   `json:"building"`
	Searching bool   `json:"searching"`
	LastBuild string `json:"lastBuild,omitempty"`
}

// GetStats returns library counts and background status.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	status := h.lib.Status()
	response := StatsResponse{
		Stats:     h.lib.Stats(),
		Building:  status&library.StatusLoading != 0,
		Searching: status&library.StatusSearching != 0,
	}
	if last := h.lib.LastBuild(); !last.IsZero() {
		response.LastBuild = last.Format(time.RFC3339)
	}
	writeJSONCode(w, response, http.StatusOK)
}

// TriggerRebuild starts a library build. A build already running absorbs
// the request.
func (h *Handlers) TriggerRebuild(w http.ResponseWriter, _ *http.Request) {
	started := h.rebuild()
	logging.Info("Library rebuild requested via API (started: %v)", started)
	writeJSONCode(w, map[string]bool{"started": started}, http.StatusAccepted)
}

// GetTree returns the index tree node named by the repeated path query
// parameter. depth selects how many levels of children are included; -1
// includes all.
func (h *Handlers) GetTree(w http.ResponseWriter, r *http.Request) {
	depth := 1
	if d := r.URL.Query().Get("depth"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil {
			writeJSONError(w, "Invalid depth", http.StatusBadRequest)
			return
		}
		depth = parsed
	}

	view := h.lib.Subtree(depth, r.URL.Query()["path"]...)
	if view == nil {
		writeJSONError(w, "No such tree node", http.StatusNotFound)
		return
	}
	writeJSONCode(w, view, http.StatusOK)
}

// ExpandFiles lists a directory or archive below the file tree category.
func (h *Handlers) ExpandFiles(w http.ResponseWriter, r *http.Request) {
	view, err := h.lib.ExpandFileTree(r.Context(), r.URL.Query()["path"]...)
	if err != nil {
		logging.Debug("Failed to expand file tree: %v", err)
		writeJSONError(w, "No such file tree entry", http.StatusNotFound)
		return
	}
	writeJSONCode(w, view, http.StatusOK)
}
