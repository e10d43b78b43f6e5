// Package main provides the entry point for booklib.
//
// booklib is a self-hosted e-book library catalog. It scans a directory of
// FictionBook and EPUB files (plain or zipped), keeps their metadata in a
// SQLite catalog and organizes them by author, title, series, tag and
// location on disk. Favorites, the recent list, reading positions and
// bookmarks are kept alongside.
//
// # Application Lifecycle
//
// The serve command follows a structured initialization sequence:
//
//  1. Configuration Loading: Reads .env and environment variables, validates directories
//  2. Database Initialization: Opens the SQLite catalog and applies migrations
//  3. Library Initialization: Loads file identities and starts the first build
//  4. Component Initialization:
//     - Cover Cache: Bounded LRU of cover thumbnails, warmed after the first build
//     - Watcher: Rebuilds after changes to the books directory and on an interval
//     - Metrics Collector: Updates library gauges every minute
//  5. HTTP Server Setup: Configures routes and middleware, starts the servers
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - Health, readiness and version endpoints
//     - API endpoints for the index tree, books, covers, favorites, recent
//       books, bookmarks, reading positions and searches
//     - Server-sent library change events (/api/events)
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// # Environment Variables
//
//   - BOOKS_DIR: Directory holding the books (default: ./books)
//   - DATABASE_DIR: Directory for the SQLite catalog (default: ./data)
//   - LOCALE: Locale of the built-in help book (default: from LANG, else en)
//   - PORT: Main HTTP server port (default: 8080)
//   - METRICS_PORT: Metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable metrics server (default: true)
//   - WATCH_ENABLED: Rebuild on filesystem changes (default: true)
//   - WATCH_DEBOUNCE: Quiet period before a change triggers a build (default: 2s)
//   - BUILD_INTERVAL: Periodic rebuild interval, 0 disables (default: 30m)
//   - COVER_CACHE_SIZE: Cover thumbnails kept in memory (default: 256)
//   - COVER_SIZE: Bounding box of cover thumbnails in pixels (default: 300)
//   - SKIP_HIDDEN: Ignore dot files and directories (default: true)
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//   - LOG_FORMAT: Log encoding (auto/console/json)
//
// # Build Requirements
//
// The SQLite driver needs CGO:
//
//	CGO_ENABLED=1 go build -o booklib .
//
// # Related Packages
//
//   - [booklib/internal/library]: The catalog engine: build, search and the index tree
//   - [booklib/internal/database]: SQLite catalog storage
//   - [booklib/internal/formats]: FictionBook and EPUB metadata readers
//   - [booklib/internal/handlers]: HTTP request handlers
//   - [booklib/internal/middleware]: HTTP middleware (logging, metrics, compression)
//   - [booklib/internal/cli]: Command line
//   - [booklib/internal/startup]: Configuration and initialization
package main
