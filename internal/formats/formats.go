package formats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booklib/internal/bookfile"
	"booklib/internal/metrics"
)

// ErrUnsupported is returned for files no plugin understands.
var ErrUnsupported = errors.New("unsupported format")

// ErrNoCover is returned when a book carries no cover image.
var ErrNoCover = errors.New("no cover image")

// Author is an author as found in book metadata.
type Author struct {
	Name    string `json:"name"`
	SortKey string `json:"sortKey,omitempty"`
}

// Series is series membership as found in book metadata.
type Series struct {
	Name  string  `json:"name"`
	Index float64 `json:"index"`
}

// Metadata is what a plugin extracts from a book file.
type Metadata struct {
	Title    string   `json:"title"`
	Language string   `json:"language,omitempty"`
	Encoding string   `json:"encoding,omitempty"`
	Authors  []Author `json:"authors,omitempty"`
	Tags     []string `json:"tags,omitempty"` // slash separated paths
	Series   *Series  `json:"series,omitempty"`
}

// Resolver extracts metadata from book files.
type Resolver interface {
	Resolve(ctx context.Context, f *bookfile.File) (*Metadata, error)
}

// CoverReader extracts the raw cover image of a book.
type CoverReader interface {
	ReadCover(ctx context.Context, f *bookfile.File) ([]byte, error)
}

// Plugin handles one family of book formats.
type Plugin interface {
	Name() string
	Extensions() []string
	Resolve(ctx context.Context, f *bookfile.File) (*Metadata, error)
	ReadCover(ctx context.Context, f *bookfile.File) ([]byte, error)
}

// Collection dispatches to plugins by file extension.
type Collection struct {
	plugins map[string]Plugin
}

// NewCollection registers the given plugins. Later plugins win on
// conflicting extensions.
func NewCollection(plugins ...Plugin) *Collection {
	c := &Collection{plugins: make(map[string]Plugin)}
	for _, p := range plugins {
		for _, ext := range p.Extensions() {
			c.plugins[ext] = p
		}
	}
	return c
}

// Default returns a collection with every built-in plugin.
func Default() *Collection {
	return NewCollection(FB2{}, EPUB{})
}

// Plugin returns the plugin responsible for f, or nil.
func (c *Collection) Plugin(f *bookfile.File) Plugin {
	return c.plugins[f.Extension()]
}

// Supports reports whether some plugin handles f.
func (c *Collection) Supports(f *bookfile.File) bool {
	return c.Plugin(f) != nil
}

// Resolve extracts metadata with the matching plugin.
func (c *Collection) Resolve(ctx context.Context, f *bookfile.File) (*Metadata, error) {
	p := c.Plugin(f)
	if p == nil {
		metrics.ResolverCallsTotal.WithLabelValues("unknown", "unsupported").Inc()
		return nil, fmt.Errorf("%s: %w", f.ShortName(), ErrUnsupported)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	md, err := p.Resolve(ctx, f)
	metrics.ResolverDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ResolverCallsTotal.WithLabelValues(p.Name(), status).Inc()
	return md, err
}

// ReadCover extracts the cover image with the matching plugin.
func (c *Collection) ReadCover(ctx context.Context, f *bookfile.File) ([]byte, error) {
	p := c.Plugin(f)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", f.ShortName(), ErrUnsupported)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.ReadCover(ctx, f)
}
