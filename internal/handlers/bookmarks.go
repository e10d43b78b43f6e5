package handlers

import (
	"encoding/json"
	"net/http"

	"booklib/internal/database"
	"booklib/internal/logging"
)

// GetBookmarks returns every visible bookmark.
func (h *Handlers) GetBookmarks(w http.ResponseWriter, r *http.Request) {
	list, err := h.lib.AllBookmarks(r.Context())
	if err != nil {
		logging.Error("Failed to load bookmarks: %v", err)
		writeJSONError(w, "Failed to load bookmarks", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []database.Bookmark{}
	}
	writeJSONCode(w, list, http.StatusOK)
}

// GetInvisibleBookmarks returns the hidden bookmarks of a book, newest first.
func (h *Handlers) GetInvisibleBookmarks(w http.ResponseWriter, r *http.Request) {
	b := h.bookFromRoute(w, r)
	if b == nil {
		return
	}
	list, err := h.lib.InvisibleBookmarks(r.Context(), b)
	if err != nil {
		logging.Error("Failed to load bookmarks of %s: %v", b.Key(), err)
		writeJSONError(w, "Failed to load bookmarks", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []database.Bookmark{}
	}
	writeJSONCode(w, list, http.StatusOK)
}

// SaveBookmark creates a bookmark, or updates it when the body has an id.
func (h *Handlers) SaveBookmark(w http.ResponseWriter, r *http.Request) {
	var bm database.Bookmark
	if err := json.NewDecoder(r.Body).Decode(&bm); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if bm.BookID <= 0 {
		writeJSONError(w, "bookId is required", http.StatusBadRequest)
		return
	}
	if b := h.lookupBook(r.Context(), w, bm.BookID); b == nil {
		return
	}

	if err := h.lib.SaveBookmark(r.Context(), &bm); err != nil {
		logging.Error("Failed to save bookmark: %v", err)
		writeJSONError(w, "Failed to save bookmark", http.StatusInternalServerError)
		return
	}
	writeJSONCode(w, bm, http.StatusOK)
}

// DeleteBookmark removes a bookmark.
func (h *Handlers) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := idVar(r)
	if !ok {
		writeJSONError(w, "Invalid bookmark id", http.StatusBadRequest)
		return
	}
	if err := h.lib.DeleteBookmark(r.Context(), id); err != nil {
		logging.Error("Failed to delete bookmark %d: %v", id, err)
		writeJSONError(w, "Failed to delete bookmark", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}
