package handlers

import (
	"encoding/json"
	"net/http"

	"booklib/internal/library"
	"booklib/internal/tree"
)

// SearchRequest starts a search.
type SearchRequest struct {
	Pattern string `json:"pattern"`
}

// SearchResponse reports the state of the latest search.
type SearchResponse struct {
	Searching bool       `json:"searching"`
	Pattern   string     `json:"pattern,omitempty"`
	Found     *tree.View `json:"found,omitempty"`
}

// StartSearch starts a background search. Results are polled with
// GetSearchResults or followed on the event stream.
func (h *Handlers) StartSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.lib.StartBookSearch(req.Pattern)
	writeJSONCode(w, map[string]string{"status": "searching"}, http.StatusAccepted)
}

// GetSearchResults returns the found category, if any, and whether a
// search is still running.
func (h *Handlers) GetSearchResults(w http.ResponseWriter, _ *http.Request) {
	response := SearchResponse{
		Searching: h.lib.Status()&library.StatusSearching != 0,
	}
	if found := h.lib.Tree(tree.Found); found != nil {
		response.Pattern = found.Pattern
		response.Found = found
	}
	writeJSONCode(w, response, http.StatusOK)
}
