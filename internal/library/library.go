package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"booklib/internal/book"
	"booklib/internal/bookfile"
	"booklib/internal/database"
	"booklib/internal/formats"
	"booklib/internal/identity"
	"booklib/internal/metrics"
	"booklib/internal/resources"
	"booklib/internal/tree"
)

// Status is a bitmask of background operations in flight.
type Status int

const (
	StatusLoading   Status = 1
	StatusSearching Status = 2
)

// RecentListSize caps the recent list.
const RecentListSize = 12

// DemoDir is the books subdirectory whose books are tagged as demos.
const DemoDir = "Demos"

// Store is the catalog persistence the library needs.
type Store interface {
	book.Store
	identity.Store

	LoadBooks(ctx context.Context, existing bool) ([]*database.BookRecord, error)
	LoadBook(ctx context.Context, id int64) (*database.BookRecord, error)
	LoadBookByFileID(ctx context.Context, fileID int64) (*database.BookRecord, error)
	SaveBooks(ctx context.Context, books []*database.BookRecord) error
	SetExistingFlag(ctx context.Context, ids []int64, exists bool) error

	LoadRecentBookIDs(ctx context.Context) ([]int64, error)
	SaveRecentBookIDs(ctx context.Context, ids []int64) error
	LoadFavoriteIDs(ctx context.Context) ([]int64, error)
	AddToFavorites(ctx context.Context, bookID int64) (bool, error)
	RemoveFromFavorites(ctx context.Context, bookID int64) (bool, error)

	SaveBookmark(ctx context.Context, bm *database.Bookmark) error
	DeleteBookmark(ctx context.Context, id int64) error
	LoadBookmarks(ctx context.Context, bookID int64, visible bool) ([]database.Bookmark, error)
	LoadAllVisibleBookmarks(ctx context.Context) ([]database.Bookmark, error)
	GetStoredPosition(ctx context.Context, bookID int64) (*database.Position, error)
	StorePosition(ctx context.Context, bookID int64, p database.Position) error

	SetLastBuild(ctx context.Context, t time.Time) error
}

// Options configures a Library.
type Options struct {
	Store    Store
	Resolver formats.Resolver
	BooksDir string

	// Locale selects the help document, e.g. "de_AT". Defaults to English.
	Locale string
	// Resources holds the help documents. Defaults to the embedded set.
	Resources fs.FS
	// SkipHidden leaves out files and directories starting with a dot.
	SkipHidden bool
}

// Library is the catalog engine: the in-memory book set, the index tree and
// the background build and search that keep them current.
type Library struct {
	store      Store
	resolver   formats.Resolver
	registry   *identity.Registry
	booksDir   *bookfile.File
	locale     string
	resources  fs.FS
	skipHidden bool

	// recentMu serialises recent list updates across the store and the
	// tree. It is taken before mu.
	recentMu sync.Mutex

	mu          sync.Mutex
	books       map[string]*book.Book
	byID        map[int64]*book.Book
	root        *tree.Node
	groupTitles bool
	status      Status
	idle        chan struct{}
	building    bool
	lastBuild   time.Time

	searchRunning bool
	searchPattern string
	searchPending string
	hasPending    bool
	superseded    atomic.Bool

	events *bus
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a library without touching storage.
func New(opts Options) (*Library, error) {
	if opts.Store == nil {
		return nil, errors.New("library: store is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("library: resolver is required")
	}
	if opts.BooksDir == "" {
		return nil, errors.New("library: books directory is required")
	}
	if opts.Resources == nil {
		opts.Resources = resources.FS
	}

	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	return &Library{
		store:      opts.Store,
		resolver:   opts.Resolver,
		registry:   identity.NewRegistry(opts.Store, opts.Resources),
		booksDir:   bookfile.Physical(opts.BooksDir),
		locale:     opts.Locale,
		resources:  opts.Resources,
		skipHidden: opts.SkipHidden,
		books:      make(map[string]*book.Book),
		byID:       make(map[int64]*book.Book),
		root:       tree.NewRoot(),
		idle:       idle,
		events:     newBus(),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Open creates a library, loads the content identities and starts the first
// build in the background.
func Open(ctx context.Context, opts Options) (*Library, error) {
	l, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := l.registry.Load(ctx); err != nil {
		l.Close()
		return nil, fmt.Errorf("load file identities: %w", err)
	}
	l.StartBuild()
	return l, nil
}

// Close stops background work and ends every subscription. Builds and
// searches requested afterwards do not start.
func (l *Library) Close() {
	// Cancelling under mu orders Close after any start that already passed
	// its ctx check, so wg.Wait covers it.
	l.mu.Lock()
	l.cancel()
	l.mu.Unlock()

	l.wg.Wait()
	l.events.close()
}

// BooksDir returns the directory the library scans.
func (l *Library) BooksDir() string { return l.booksDir.Path() }

// Subscribe returns a channel of change events and a function that ends the
// subscription. Events are queued per subscriber; publishing never blocks.
func (l *Library) Subscribe(buffer int) (<-chan Event, func()) {
	return l.events.subscribe(buffer)
}

func (l *Library) publishLocked(code Code) {
	ev := Event{Code: code, Status: l.status, Time: time.Now()}
	if found := l.root.Lookup(tree.Found); found != nil {
		ev.Pattern = found.Pattern()
	}
	l.events.publish(ev)
}

func (l *Library) publish(code Code) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publishLocked(code)
}

func (l *Library) addStatusFlagsLocked(flags Status) {
	if l.status&flags == flags {
		return
	}
	if l.status == 0 {
		l.idle = make(chan struct{})
	}
	l.status |= flags
	l.publishLocked(StatusChanged)
}

func (l *Library) removeStatusFlagsLocked(flags Status) {
	if l.status&flags == 0 {
		return
	}
	l.status &^= flags
	if l.status == 0 {
		close(l.idle)
	}
	l.publishLocked(StatusChanged)
}

// Status returns the current background status mask.
func (l *Library) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// IsUpToDate reports whether no build or search is in flight.
func (l *Library) IsUpToDate() bool {
	return l.Status() == 0
}

// Wait blocks until no build or search is in flight.
func (l *Library) Wait(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastBuild returns when the most recent build finished.
func (l *Library) LastBuild() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastBuild
}

// Books returns the books currently in the library, ordered by file key.
func (l *Library) Books() []*book.Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.booksLocked()
}

func (l *Library) booksLocked() []*book.Book {
	out := make([]*book.Book, 0, len(l.books))
	for _, b := range l.books {
		out = append(out, b)
	}
	sortBooksByKey(out)
	return out
}

func sortBooksByKey(books []*book.Book) {
	sort.Slice(books, func(i, j int) bool { return books[i].Key() < books[j].Key() })
}

// Tree returns a snapshot of the node at path and its direct children, or
// nil when no such node exists.
func (l *Library) Tree(path ...string) *tree.View {
	return l.Subtree(1, path...)
}

// Subtree returns a snapshot of the node at path with depth levels of
// descendants. A negative depth includes everything.
func (l *Library) Subtree(depth int, path ...string) *tree.View {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.root.Lookup(path...)
	if n == nil {
		return nil
	}
	return n.View(depth)
}

// Activity implements metrics.ActivityProvider.
func (l *Library) Activity() (building, searching bool) {
	status := l.Status()
	return status&StatusLoading != 0, status&StatusSearching != 0
}

// Stats implements metrics.StatsProvider.
func (l *Library) Stats() metrics.Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	authors := make(map[book.Author]struct{})
	for _, b := range l.books {
		for _, a := range b.Authors() {
			authors[a] = struct{}{}
		}
	}
	return metrics.Stats{
		TotalBooks:     len(l.books),
		TotalAuthors:   len(authors),
		TotalFavorites: l.root.Category(tree.Favorites).Len(),
		TotalRecent:    l.root.Category(tree.Recent).Len(),
	}
}
