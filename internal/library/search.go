package library

import (
	"time"

	"booklib/internal/book"
	"booklib/internal/logging"
	"booklib/internal/metrics"
	"booklib/internal/tree"
)

// StartBookSearch looks for books matching pattern in the background and
// collects them in the found category. A search started while another runs
// supersedes it; only the last pattern completes.
//
// The outcome is published as Found or NotFound. Repeating the pattern of the
// current found category publishes Found without scanning again.
func (l *Library) StartBookSearch(pattern string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ctx.Err() != nil {
		return
	}
	if l.searchRunning {
		l.searchPending = pattern
		l.hasPending = true
		l.superseded.Store(true)
		return
	}

	l.searchRunning = true
	l.searchPattern = pattern
	l.addStatusFlagsLocked(StatusSearching)

	l.wg.Add(1)
	go l.searchLoop(pattern)
}

func (l *Library) searchLoop(pattern string) {
	defer l.wg.Done()

	for {
		l.runSearch(pattern)

		l.mu.Lock()
		if l.hasPending && l.ctx.Err() == nil {
			pattern = l.searchPending
			l.searchPattern = pattern
			l.hasPending = false
			l.superseded.Store(false)
			l.mu.Unlock()
			continue
		}
		l.hasPending = false
		l.superseded.Store(false)
		l.searchRunning = false
		l.removeStatusFlagsLocked(StatusSearching)
		l.mu.Unlock()
		return
	}
}

// restartSearchLocked makes a running search start over, so that it scans
// the books of a freshly primed tree rather than its earlier snapshot. A
// pattern already waiting takes precedence.
func (l *Library) restartSearchLocked() {
	if !l.searchRunning {
		return
	}
	if !l.hasPending {
		l.searchPending = l.searchPattern
		l.hasPending = true
	}
	l.superseded.Store(true)
}

func (l *Library) runSearch(pattern string) {
	start := time.Now()
	folded := book.FoldPattern(pattern)

	l.mu.Lock()
	if folded == "" {
		l.publishLocked(NotFound)
		l.mu.Unlock()
		metrics.SearchRunsTotal.WithLabelValues("not_found").Inc()
		return
	}
	if found := l.root.Lookup(tree.Found); found != nil && book.FoldPattern(found.Pattern()) == folded {
		l.publishLocked(Found)
		l.mu.Unlock()
		metrics.SearchRunsTotal.WithLabelValues("cached").Inc()
		return
	}
	candidates := l.booksLocked()
	l.mu.Unlock()

	var found *tree.Node
	matches := 0
	for _, b := range candidates {
		if l.superseded.Load() || l.ctx.Err() != nil {
			l.mu.Lock()
			if found != nil && l.root.Lookup(tree.Found) == found {
				l.root.RemoveCategory(tree.Found)
			}
			l.mu.Unlock()
			metrics.SearchRunsTotal.WithLabelValues("superseded").Inc()
			logging.Debug("Search for %q superseded after %d matches", pattern, matches)
			return
		}
		if !b.Matches(folded) {
			continue
		}

		l.mu.Lock()
		if found == nil || l.root.Lookup(tree.Found) != found {
			found = l.root.NewFound(pattern)
			l.publishLocked(Found)
		}
		found.AddBook(b)
		l.publishLocked(BookAdded)
		l.mu.Unlock()
		matches++
	}

	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchMatches.Observe(float64(matches))

	if matches == 0 {
		l.mu.Lock()
		l.root.RemoveCategory(tree.Found)
		l.publishLocked(NotFound)
		l.mu.Unlock()
		metrics.SearchRunsTotal.WithLabelValues("not_found").Inc()
		return
	}
	metrics.SearchRunsTotal.WithLabelValues("found").Inc()
	logging.Debug("Search for %q found %d books in %v", pattern, matches, time.Since(start))
}
