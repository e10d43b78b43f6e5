// Package metrics provides Prometheus instrumentation for the book library.
//
// All metrics are prefixed with "booklib_" and registered with the default
// registry through promauto.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Database Metrics
//
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBTransactionDuration: Histogram of transaction duration by outcome
//
// ## Build Metrics
//
// Track reconciliation passes between the catalog and the filesystem:
//   - BuildRunsTotal, BuildCoalescedTotal, BuildIsRunning
//   - BuildPhaseDuration: Histogram per phase (prime, verify, discover, help, commit)
//   - BuildBooksTotal: Counter of books by outcome (verified, orphaned, resurrected, ...)
//
// ## Resolver and Search Metrics
//
//   - ResolverCallsTotal: Metadata resolutions by format and status
//   - SearchRunsTotal: Searches by outcome (found, not_found, cached, superseded)
//
// ## Library Metrics
//
// Gauges refreshed by the [Collector] from a [StatsProvider]:
//   - LibraryBooksTotal, LibraryAuthorsTotal, LibraryFavoritesTotal, LibraryRecentTotal
//
// # Usage
//
// To expose the metrics, mount promhttp.Handler() on the metrics endpoint:
//
//	mux.Handle("/metrics", promhttp.Handler())
package metrics
