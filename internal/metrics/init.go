package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, phase := range []string{"prime", "verify", "discover", "help", "commit"} {
		BuildPhaseDuration.WithLabelValues(phase)
	}

	for _, outcome := range []string{"verified", "refreshed", "orphaned", "resurrected", "discovered", "removed"} {
		BuildBooksTotal.WithLabelValues(outcome)
	}

	for _, format := range []string{"fb2", "epub", "unknown"} {
		for _, status := range []string{"success", "error", "unsupported"} {
			ResolverCallsTotal.WithLabelValues(format, status)
		}
		ResolverDuration.WithLabelValues(format)
	}

	for _, outcome := range []string{"found", "not_found", "cached", "superseded"} {
		SearchRunsTotal.WithLabelValues(outcome)
	}

	for _, op := range []string{"build", "search"} {
		LibraryActivity.WithLabelValues(op)
	}

	for _, code := range []string{"book_added", "book_removed", "status_changed", "found", "not_found"} {
		LibraryEventsTotal.WithLabelValues(code)
	}

	for _, status := range []string{"success", "no_cover", "error"} {
		CoverGenerationsTotal.WithLabelValues(status)
	}

	for _, source := range []string{"fsnotify", "interval", "manual"} {
		WatcherTriggersTotal.WithLabelValues(source)
	}

	volumes := []string{"books", "database", "unknown"}
	for _, op := range []string{"stat", "open", "readdir"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
