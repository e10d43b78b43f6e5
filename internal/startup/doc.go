// Package startup handles application configuration and the startup and
// shutdown logging of the server.
//
// # Configuration
//
// [LoadConfig] loads a .env file when present and then reads the
// environment through viper. Supported variables:
//
//   - BOOKS_DIR: Directory scanned for books (default: ./books)
//   - DATABASE_DIR: Directory holding the catalog database (default: ./data)
//   - LOCALE: Help document locale such as de_AT (default: derived from LANG, else en)
//   - PORT: HTTP API port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - WATCH_ENABLED: Rebuild when the books directory changes (default: true)
//   - WATCH_DEBOUNCE: Quiet period before a change triggers a build (default: 2s)
//   - BUILD_INTERVAL: Unconditional rebuild interval, 0 disables (default: 30m)
//   - COVER_CACHE_SIZE: Cover thumbnails kept in memory (default: 256)
//   - COVER_SIZE: Thumbnail bounding box in pixels (default: 300)
//   - SKIP_HIDDEN: Ignore dot files and directories (default: true)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// LOG_LEVEL, LOG_FORMAT and COVER_WORKERS are read by the logging and
// workers packages directly.
//
// # Directory Setup
//
// [PrepareDirectories] creates the books and database directories. The
// database directory must be writable; a books directory problem is only
// logged.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//
//	go build -ldflags "-X booklib/internal/startup.Version=1.2.0"
//
// # Lifecycle Logging
//
// [Setup] prints the banner, system information and the configuration table.
// The Log* functions print the remaining sections in startup order:
// [LogDatabaseInit], [LogLibraryInit], [LogHTTPRoutes], [LogServerStarted],
// and on shutdown [LogShutdownInitiated] through [LogShutdownComplete].
package startup
