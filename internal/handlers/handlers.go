package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"booklib/internal/covers"
	"booklib/internal/library"
)

// Handlers serves the library over HTTP.
type Handlers struct {
	lib     *library.Library
	covers  *covers.Cache
	rebuild func() bool
	started time.Time
}

// New creates the handlers. rebuild starts a library build on request; nil
// uses the library directly.
func New(lib *library.Library, coverCache *covers.Cache, rebuild func() bool) *Handlers {
	if rebuild == nil {
		rebuild = lib.StartBuild
	}
	return &Handlers{
		lib:     lib,
		covers:  coverCache,
		rebuild: rebuild,
		started: time.Now(),
	}
}

// Router returns a router with every API route registered.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/rebuild", h.TriggerRebuild).Methods(http.MethodPost)
	api.HandleFunc("/events", h.StreamEvents).Methods(http.MethodGet)

	// Index tree
	api.HandleFunc("/tree", h.GetTree).Methods(http.MethodGet)
	api.HandleFunc("/files", h.ExpandFiles).Methods(http.MethodGet)

	// Books
	api.HandleFunc("/books/help", h.GetHelpBook).Methods(http.MethodGet)
	api.HandleFunc("/books/{id:[0-9]+}", h.GetBook).Methods(http.MethodGet)
	api.HandleFunc("/books/{id:[0-9]+}", h.RemoveBook).Methods(http.MethodDelete)
	api.HandleFunc("/books/{id:[0-9]+}/cover", h.GetCover).Methods(http.MethodGet)
	api.HandleFunc("/books/{id:[0-9]+}/reload", h.ReloadBook).Methods(http.MethodPost)
	api.HandleFunc("/books/{id:[0-9]+}/position", h.GetPosition).Methods(http.MethodGet)
	api.HandleFunc("/books/{id:[0-9]+}/position", h.StorePosition).Methods(http.MethodPut)
	api.HandleFunc("/books/{id:[0-9]+}/bookmarks", h.GetInvisibleBookmarks).Methods(http.MethodGet)

	// Recent and favorites
	api.HandleFunc("/recent", h.GetRecent).Methods(http.MethodGet)
	api.HandleFunc("/recent", h.AddRecent).Methods(http.MethodPost)
	api.HandleFunc("/favorites", h.GetFavorites).Methods(http.MethodGet)
	api.HandleFunc("/favorites", h.AddFavorite).Methods(http.MethodPost)
	api.HandleFunc("/favorites", h.RemoveFavorite).Methods(http.MethodDelete)
	api.HandleFunc("/favorites/check", h.CheckFavorite).Methods(http.MethodGet)

	// Search
	api.HandleFunc("/search", h.StartSearch).Methods(http.MethodPost)
	api.HandleFunc("/search", h.GetSearchResults).Methods(http.MethodGet)

	// Bookmarks
	api.HandleFunc("/bookmarks", h.GetBookmarks).Methods(http.MethodGet)
	api.HandleFunc("/bookmarks", h.SaveBookmark).Methods(http.MethodPost)
	api.HandleFunc("/bookmarks/{id:[0-9]+}", h.DeleteBookmark).Methods(http.MethodDelete)

	return r
}
