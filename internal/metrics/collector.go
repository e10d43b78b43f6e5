package metrics

import (
	"sync"
	"time"

	"booklib/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	Stats() Stats
}

// ActivityProvider is implemented by providers that also report which
// background operations are running.
type ActivityProvider interface {
	Activity() (building, searching bool)
}

// Stats holds the current library statistics
type Stats struct {
	TotalBooks     int `json:"totalBooks"`
	TotalAuthors   int `json:"totalAuthors"`
	TotalFavorites int `json:"totalFavorites"`
	TotalRecent    int `json:"totalRecent"`
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.Stats()

	LibraryBooksTotal.Set(float64(stats.TotalBooks))
	LibraryAuthorsTotal.Set(float64(stats.TotalAuthors))
	LibraryFavoritesTotal.Set(float64(stats.TotalFavorites))
	LibraryRecentTotal.Set(float64(stats.TotalRecent))

	if ap, ok := c.statsProvider.(ActivityProvider); ok {
		building, searching := ap.Activity()
		LibraryActivity.WithLabelValues("build").Set(boolGauge(building))
		LibraryActivity.WithLabelValues("search").Set(boolGauge(searching))
	}

	logging.Debug("Metrics collected: books=%d, authors=%d, favorites=%d, recent=%d",
		stats.TotalBooks, stats.TotalAuthors, stats.TotalFavorites, stats.TotalRecent)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
