package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"booklib/internal/book"
	"booklib/internal/covers"
	"booklib/internal/database"
	"booklib/internal/library"
	"booklib/internal/logging"
)

// BookResponse is the JSON form of a book.
type BookResponse struct {
	*database.BookRecord
	Favorite  bool `json:"favorite"`
	Removable bool `json:"removable"`
}

func (h *Handlers) bookResponse(b *book.Book) BookResponse {
	return BookResponse{
		BookRecord: b.Record(),
		Favorite:   h.lib.IsBookInFavorites(b),
		Removable:  h.lib.CanRemoveBookFile(b),
	}
}

// GetBook returns a book by id.
func (h *Handlers) GetBook(w http.ResponseWriter, r *http.Request) {
	b := h.bookFromRoute(w, r)
	if b == nil {
		return
	}
	writeJSONCode(w, h.bookResponse(b), http.StatusOK)
}

// GetHelpBook returns the help document for the configured locale.
func (h *Handlers) GetHelpBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.lib.HelpBook(r.Context())
	if err != nil {
		logging.Error("Failed to load help book: %v", err)
		writeJSONError(w, "Failed to load help book", http.StatusInternalServerError)
		return
	}
	if b == nil {
		writeJSONError(w, errBookNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSONCode(w, h.bookResponse(b), http.StatusOK)
}

// GetCover returns the JPEG cover thumbnail of a book.
func (h *Handlers) GetCover(w http.ResponseWriter, r *http.Request) {
	b := h.bookFromRoute(w, r)
	if b == nil {
		return
	}

	data, err := h.covers.Get(r.Context(), b.File())
	if errors.Is(err, covers.ErrNoCover) {
		writeJSONError(w, "Book has no cover", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Warn("Failed to get cover for %s: %v", b.Key(), err)
		writeJSONError(w, "Failed to get cover", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(data); err != nil {
		logging.Debug("Failed to write cover for %s: %v", b.Key(), err)
	}
}

// RemoveBook takes a book out of the library. With ?disk=true its file is
// deleted as well.
func (h *Handlers) RemoveBook(w http.ResponseWriter, r *http.Request) {
	b := h.bookFromRoute(w, r)
	if b == nil {
		return
	}

	mode := library.RemoveFromLibrary
	if disk, _ := strconv.ParseBool(r.URL.Query().Get("disk")); disk {
		if !h.lib.CanRemoveBookFile(b) {
			writeJSONError(w, "Book file holds other books", http.StatusConflict)
			return
		}
		mode = library.RemoveFromLibraryAndDisk
	}

	if _, err := h.lib.RemoveBook(r.Context(), b, mode); err != nil {
		if errors.Is(err, library.ErrPartialRemoval) {
			logging.Warn("Removed %s from library only: %v", b.Key(), err)
			writeJSONCode(w, map[string]string{"status": "partial", "error": err.Error()}, http.StatusMultiStatus)
			return
		}
		logging.Error("Failed to remove %s: %v", b.Key(), err)
		writeJSONError(w, "Failed to remove book", http.StatusInternalServerError)
		return
	}
	h.covers.Invalidate(b.File())
	writeJSONStatus(w, "ok")
}

// ReloadBook re-reads a book's metadata from its file.
func (h *Handlers) ReloadBook(w http.ResponseWriter, r *http.Request) {
	b := h.bookFromRoute(w, r)
	if b == nil {
		return
	}
	if err := h.lib.ReloadBookFromFile(r.Context(), b); err != nil {
		if errors.Is(err, book.ErrResolution) {
			writeJSONError(w, "Book file could not be read", http.StatusUnprocessableEntity)
			return
		}
		logging.Error("Failed to reload %s: %v", b.Key(), err)
		writeJSONError(w, "Failed to reload book", http.StatusInternalServerError)
		return
	}
	h.covers.Invalidate(b.File())
	writeJSONCode(w, h.bookResponse(b), http.StatusOK)
}

// GetPosition returns the stored reading position of a book.
func (h *Handlers) GetPosition(w http.ResponseWriter, r *http.Request) {
	b := h.bookFromRoute(w, r)
	if b == nil {
		return
	}
	pos, err := h.lib.StoredPosition(r.Context(), b)
	if err != nil {
		logging.Error("Failed to load position of %s: %v", b.Key(), err)
		writeJSONError(w, "Failed to load position", http.StatusInternalServerError)
		return
	}
	if pos == nil {
		writeJSONError(w, "No stored position", http.StatusNotFound)
		return
	}
	writeJSONCode(w, pos, http.StatusOK)
}

// StorePosition saves the reading position of a book.
func (h *Handlers) StorePosition(w http.ResponseWriter, r *http.Request) {
	b := h.bookFromRoute(w, r)
	if b == nil {
		return
	}
	var pos database.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.lib.StorePosition(r.Context(), b, pos); err != nil {
		logging.Error("Failed to store position of %s: %v", b.Key(), err)
		writeJSONError(w, "Failed to store position", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}
