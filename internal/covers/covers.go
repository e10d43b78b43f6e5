package covers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"booklib/internal/book"
	"booklib/internal/bookfile"
	"booklib/internal/formats"
	"booklib/internal/logging"
	"booklib/internal/metrics"
	"booklib/internal/workers"
)

// DefaultSize is the bounding box of generated thumbnails in pixels.
const DefaultSize = 300

// ErrNoCover is returned for books without a usable cover image.
var ErrNoCover = formats.ErrNoCover

type entry struct {
	data    []byte
	missing bool
}

// Cache generates JPEG cover thumbnails and keeps the most recently used in
// memory. Books without a cover are remembered too, so they are not parsed
// again on every request.
type Cache struct {
	source formats.CoverReader
	size   int
	lru    *lru.Cache[string, entry]
}

// New creates a cache holding up to entries thumbnails that fit in a
// size x size box.
func New(source formats.CoverReader, entries, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := lru.New[string, entry](entries)
	if err != nil {
		return nil, fmt.Errorf("create cover cache: %w", err)
	}
	return &Cache{source: source, size: size, lru: l}, nil
}

// cacheKey ties an entry to the file's modification time so rewritten files
// get fresh thumbnails.
func cacheKey(f *bookfile.File) string {
	if info, err := f.Stat(); err == nil {
		return fmt.Sprintf("%s@%d", f.Key(), info.ModTime.UnixNano())
	}
	return f.Key()
}

// Get returns the thumbnail for the book stored in f.
func (c *Cache) Get(ctx context.Context, f *bookfile.File) ([]byte, error) {
	key := cacheKey(f)
	if e, ok := c.lru.Get(key); ok {
		metrics.CoverCacheHits.Inc()
		if e.missing {
			return nil, ErrNoCover
		}
		return e.data, nil
	}
	metrics.CoverCacheMisses.Inc()

	data, err := c.generate(ctx, f)
	switch {
	case errors.Is(err, ErrNoCover):
		c.add(key, entry{missing: true})
		metrics.CoverGenerationsTotal.WithLabelValues("no_cover").Inc()
		return nil, ErrNoCover
	case err != nil:
		metrics.CoverGenerationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	c.add(key, entry{data: data})
	metrics.CoverGenerationsTotal.WithLabelValues("success").Inc()
	return data, nil
}

func (c *Cache) add(key string, e entry) {
	c.lru.Add(key, e)
	metrics.CoverCacheEntries.Set(float64(c.lru.Len()))
}

func (c *Cache) generate(ctx context.Context, f *bookfile.File) ([]byte, error) {
	raw, err := c.source.ReadCover(ctx, f)
	if err != nil {
		if errors.Is(err, formats.ErrUnsupported) {
			return nil, ErrNoCover
		}
		return nil, fmt.Errorf("read cover of %s: %w", f.Key(), err)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		logging.Debug("Undecodable cover in %s: %v", f.Key(), err)
		return nil, ErrNoCover
	}
	logging.Debug("Generating cover for %s from %s %dx%d", f.Key(), format, img.Bounds().Dx(), img.Bounds().Dy())

	thumb := imaging.Fit(img, c.size, c.size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode cover of %s: %w", f.Key(), err)
	}
	return buf.Bytes(), nil
}

// Invalidate drops the entry for the current version of f.
func (c *Cache) Invalidate(f *bookfile.File) {
	c.lru.Remove(cacheKey(f))
	metrics.CoverCacheEntries.Set(float64(c.lru.Len()))
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.lru.Purge()
	metrics.CoverCacheEntries.Set(0)
}

// Len returns the number of cached entries, negative ones included.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Warm generates thumbnails for books in parallel and returns how many have
// a cover.
func (c *Cache) Warm(ctx context.Context, books []*book.Book) int {
	var withCover atomic.Int64
	workers.Run(ctx, workers.ForMixed(8), books, func(ctx context.Context, b *book.Book) {
		if _, err := c.Get(ctx, b.File()); err == nil {
			withCover.Add(1)
		} else if !errors.Is(err, ErrNoCover) {
			logging.Debug("Cover warm-up for %s failed: %v", b.Key(), err)
		}
	})
	n := int(withCover.Load())
	logging.Debug("Cover cache warmed: %d of %d books have covers", n, len(books))
	return n
}
