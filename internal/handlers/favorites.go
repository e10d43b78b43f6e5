package handlers

import (
	"net/http"
	"strconv"

	"booklib/internal/logging"
	"booklib/internal/tree"
)

// GetFavorites returns the favorites category.
func (h *Handlers) GetFavorites(w http.ResponseWriter, _ *http.Request) {
	writeJSONCode(w, h.lib.Tree(tree.Favorites), http.StatusOK)
}

// AddFavorite adds the book in the request body to the favorites.
func (h *Handlers) AddFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := decodeBookRequest(r)
	if !ok {
		writeJSONError(w, "bookId is required", http.StatusBadRequest)
		return
	}
	b := h.lookupBook(r.Context(), w, id)
	if b == nil {
		return
	}

	added, err := h.lib.AddBookToFavorites(r.Context(), b)
	if err != nil {
		logging.Error("Failed to add favorite %s: %v", b.Key(), err)
		writeJSONError(w, "Failed to add favorite", http.StatusInternalServerError)
		return
	}
	writeJSONCode(w, map[string]bool{"added": added}, http.StatusOK)
}

// RemoveFavorite removes the book in the request body from the favorites.
func (h *Handlers) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := decodeBookRequest(r)
	if !ok {
		writeJSONError(w, "bookId is required", http.StatusBadRequest)
		return
	}
	b := h.lookupBook(r.Context(), w, id)
	if b == nil {
		return
	}

	removed, err := h.lib.RemoveBookFromFavorites(r.Context(), b)
	if err != nil {
		logging.Error("Failed to remove favorite %s: %v", b.Key(), err)
		writeJSONError(w, "Failed to remove favorite", http.StatusInternalServerError)
		return
	}
	writeJSONCode(w, map[string]bool{"removed": removed}, http.StatusOK)
}

// CheckFavorite reports whether ?bookId= is a favorite.
func (h *Handlers) CheckFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("bookId"), 10, 64)
	if err != nil {
		writeJSONError(w, "bookId is required", http.StatusBadRequest)
		return
	}
	b := h.lookupBook(r.Context(), w, id)
	if b == nil {
		return
	}
	writeJSONCode(w, map[string]bool{"isFavorite": h.lib.IsBookInFavorites(b)}, http.StatusOK)
}

// GetRecent returns the recent category, most recent first.
func (h *Handlers) GetRecent(w http.ResponseWriter, _ *http.Request) {
	writeJSONCode(w, h.lib.Tree(tree.Recent), http.StatusOK)
}

// AddRecent moves the book in the request body to the front of the recent
// list.
func (h *Handlers) AddRecent(w http.ResponseWriter, r *http.Request) {
	id, ok := decodeBookRequest(r)
	if !ok {
		writeJSONError(w, "bookId is required", http.StatusBadRequest)
		return
	}
	b := h.lookupBook(r.Context(), w, id)
	if b == nil {
		return
	}
	if err := h.lib.AddBookToRecentList(r.Context(), b); err != nil {
		logging.Error("Failed to update recent list with %s: %v", b.Key(), err)
		writeJSONError(w, "Failed to update recent list", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}
