package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booklib_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booklib_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booklib_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booklib_db_rows_affected",
			Help:    "Rows affected by write statements",
			Buckets: []float64{1, 10, 100, 1000, 10000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Build metrics
var (
	BuildRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booklib_build_runs_total",
			Help: "Total number of library reconciliation passes",
		},
	)

	BuildCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booklib_build_coalesced_total",
			Help: "Build requests folded into an already running pass",
		},
	)

	BuildIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_build_running",
			Help: "Whether a reconciliation pass is running (1 = running, 0 = idle)",
		},
	)

	BuildLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_build_last_run_timestamp",
			Help: "Timestamp of the last completed reconciliation pass",
		},
	)

	BuildLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_build_last_run_duration_seconds",
			Help: "Duration of the last reconciliation pass in seconds",
		},
	)

	BuildPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booklib_build_phase_duration_seconds",
			Help:    "Duration of each reconciliation phase in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"phase"}, // "prime", "verify", "discover", "help", "commit"
	)

	BuildBooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_build_books_total",
			Help: "Books handled by reconciliation passes by outcome",
		},
		[]string{"outcome"}, // "verified", "refreshed", "orphaned", "resurrected", "discovered", "removed"
	)

	BuildErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booklib_build_errors_total",
			Help: "Total number of reconciliation errors",
		},
	)

	BuildDirectoriesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booklib_build_directories_scanned_total",
			Help: "Directories visited by discovery",
		},
	)
)

// Resolver metrics
var (
	ResolverCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_resolver_calls_total",
			Help: "Metadata resolution attempts by format and status",
		},
		[]string{"format", "status"}, // status: "success", "error", "unsupported"
	)

	ResolverDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booklib_resolver_duration_seconds",
			Help:    "Metadata resolution duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"format"},
	)
)

// Search metrics
var (
	SearchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_search_runs_total",
			Help: "Search requests by outcome",
		},
		[]string{"outcome"}, // "found", "not_found", "cached", "superseded"
	)

	SearchMatches = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booklib_search_matches",
			Help:    "Number of books matched per completed search",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booklib_search_duration_seconds",
			Help:    "Search scan duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)
)

// Library metrics
var (
	LibraryBooksTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_books_total",
			Help: "Books currently present in the library",
		},
	)

	LibraryAuthorsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_authors_total",
			Help: "Distinct authors in the library",
		},
	)

	LibraryFavoritesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_favorites_total",
			Help: "Books in the favorites list",
		},
	)

	LibraryRecentTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_recent_total",
			Help: "Books in the recent list",
		},
	)

	LibraryActivity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "booklib_background_operation_active",
			Help: "Whether a background library operation is running (1) or not (0)",
		},
		[]string{"operation"},
	)

	LibraryEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_events_published_total",
			Help: "Library change events published by code",
		},
		[]string{"code"},
	)

	LibrarySubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_event_subscribers",
			Help: "Active library event subscribers",
		},
	)
)

// Cover cache metrics
var (
	CoverCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booklib_cover_cache_hits_total",
			Help: "Cover thumbnail cache hits",
		},
	)

	CoverCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booklib_cover_cache_misses_total",
			Help: "Cover thumbnail cache misses",
		},
	)

	CoverCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_cover_cache_entries",
			Help: "Entries held by the cover thumbnail cache",
		},
	)

	CoverGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_cover_generations_total",
			Help: "Cover thumbnail generations by status",
		},
		[]string{"status"}, // "success", "no_cover", "error"
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_watcher_events_total",
			Help: "Filesystem events received by the watcher",
		},
		[]string{"op"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booklib_watcher_errors_total",
			Help: "Errors reported by the filesystem watcher",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booklib_watched_directories",
			Help: "Directories registered with the filesystem watcher",
		},
	)

	WatcherTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_watcher_triggers_total",
			Help: "Rebuilds requested by the watcher by source",
		},
		[]string{"source"}, // "fsnotify", "interval", "manual"
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_filesystem_retry_attempts_total",
			Help: "Filesystem operation retries after stale handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklib_filesystem_stale_errors_total",
			Help: "Stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booklib_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retrying filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// App info
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "booklib_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)
