package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"booklib/internal/book"
	"booklib/internal/logging"
)

var errBookNotFound = errors.New("book not found")

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONCode writes v as JSON with the given status code.
func writeJSONCode(w http.ResponseWriter, v interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONCode(w, map[string]string{"error": message}, statusCode)
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	writeJSONCode(w, map[string]string{"status": status}, http.StatusOK)
}

// idVar parses the numeric {id} route variable.
func idVar(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

// bookRequest is the body of requests naming a book.
type bookRequest struct {
	BookID int64 `json:"bookId"`
}

func decodeBookRequest(r *http.Request) (int64, bool) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BookID <= 0 {
		return 0, false
	}
	return req.BookID, true
}

// lookupBook resolves id to a book, writing the error response itself when
// it fails.
func (h *Handlers) lookupBook(ctx context.Context, w http.ResponseWriter, id int64) *book.Book {
	b, err := h.lib.BookByID(ctx, id)
	if err != nil {
		logging.Error("Failed to load book %d: %v", id, err)
		writeJSONError(w, "Failed to load book", http.StatusInternalServerError)
		return nil
	}
	if b == nil {
		writeJSONError(w, errBookNotFound.Error(), http.StatusNotFound)
		return nil
	}
	return b
}

// bookFromRoute resolves the {id} route variable to a book.
func (h *Handlers) bookFromRoute(w http.ResponseWriter, r *http.Request) *book.Book {
	id, ok := idVar(r)
	if !ok {
		writeJSONError(w, "Invalid book id", http.StatusBadRequest)
		return nil
	}
	return h.lookupBook(r.Context(), w, id)
}
