package library

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklib/internal/book"
	"booklib/internal/metrics"
	"booklib/internal/tree"
)

// collectUntilIdle returns the events published until the library reports
// an empty status.
func collectUntilIdle(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "subscription closed")
			got = append(got, ev)
			if ev.Code == StatusChanged && ev.Status == 0 {
				return got
			}
		case <-timeout:
			t.Fatalf("library never became idle after %d events", len(got))
		}
	}
}

func countCode(events []Event, code Code) int {
	n := 0
	for _, ev := range events {
		if ev.Code == code {
			n++
		}
	}
	return n
}

func TestBooksOutsideLibraryStayOutOfCatalog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeBook(t, dir, "dune.fb2", fixture{title: "Dune"})
	outside := writeBook(t, t.TempDir(), "elsewhere.fb2", fixture{title: "Elsewhere"})

	db := newTestDB(t)
	l := openLibrary(t, db, dir, newCountingResolver())
	ctx := context.Background()

	b := bookAt(t, l, outside)
	require.NotEqual(t, book.Unsaved, b.ID())
	added, err := l.AddBookToFavorites(ctx, b)
	require.NoError(t, err)
	require.True(t, added)

	count, err := db.CountBooks(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "dune and the help book")

	require.True(t, l.StartBuild())
	waitIdle(t, l)

	titles := childNames(l.Tree(tree.ByTitle))
	assert.Contains(t, titles, "Dune")
	assert.NotContains(t, titles, "Elsewhere")
	assert.Equal(t, []string{"Elsewhere"}, childNames(l.Tree(tree.Favorites)))
}

func TestVerifyNotifiesInBatches(t *testing.T) {
	t.Parallel()

	const books = 33
	dir := t.TempDir()
	for i := range books {
		writeBook(t, dir, fmt.Sprintf("book%02d.fb2", i), fixture{title: fmt.Sprintf("Book %02d", i)})
	}
	l := openLibrary(t, newTestDB(t), dir, newCountingResolver())

	events, cancel := l.Subscribe(256)
	defer cancel()
	require.True(t, l.StartBuild())
	got := collectUntilIdle(t, events)

	// One after priming, one per full batch, one for the tail, one for the
	// help book. Nothing is new on disk.
	want := 1 + books/notifyEvery + 1 + 1
	assert.Equal(t, want, countCode(got, BookAdded))
	assert.Len(t, l.Books(), books+1)
}

func TestRebuildKeepsBookInstances(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeBook(t, dir, "dune.fb2", fixture{title: "Dune"})
	l := openLibrary(t, newTestDB(t), dir, newCountingResolver())

	before := bookAt(t, l, path)
	before.SetTitle("Dune, annotated")

	require.True(t, l.StartBuild())
	waitIdle(t, l)

	after := bookAt(t, l, path)
	assert.Same(t, before, after)
	assert.Equal(t, "Dune, annotated", after.Title())
}

func TestBuildRestartsRunningSearch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		pending     string
		hasPending  bool
		wantPattern string
	}{
		{"reruns current pattern", "", false, "dune"},
		{"keeps newer pattern", "herbert", true, "herbert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeBook(t, dir, "dune.fb2", fixture{title: "Dune", first: "Frank", last: "Herbert"})
			l := openLibrary(t, newTestDB(t), dir, newCountingResolver())

			// Pretend a search is mid-scan while a build primes the tree.
			l.mu.Lock()
			l.searchRunning = true
			l.searchPattern = "dune"
			l.searchPending = tt.pending
			l.hasPending = tt.hasPending
			l.mu.Unlock()

			require.NoError(t, l.primeFromCatalog(context.Background(), newBuildPass()))

			l.mu.Lock()
			defer l.mu.Unlock()
			assert.True(t, l.superseded.Load())
			assert.True(t, l.hasPending)
			assert.Equal(t, tt.wantPattern, l.searchPending)

			l.searchRunning = false
			l.hasPending = false
			l.superseded.Store(false)
		})
	}
}

func TestRepeatedSearchUsesCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeBook(t, dir, "foundation.fb2", fixture{title: "Foundation", first: "Isaac", last: "Asimov"})
	writeBook(t, dir, "dune.fb2", fixture{title: "Dune", first: "Frank", last: "Herbert"})
	l := openLibrary(t, newTestDB(t), dir, newCountingResolver())

	l.StartBookSearch("Asimov")
	waitIdle(t, l)

	cached := testutil.ToFloat64(metrics.SearchRunsTotal.WithLabelValues("cached"))
	events, cancel := l.Subscribe(64)
	defer cancel()

	l.StartBookSearch("  ASIMOV ")
	got := collectUntilIdle(t, events)

	assert.Equal(t, 1, countCode(got, Found))
	assert.Zero(t, countCode(got, BookAdded), "cache hit must not rescan")
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.SearchRunsTotal.WithLabelValues("cached")), cached+1)
	assert.Equal(t, []string{"Foundation"}, childNames(l.Tree(tree.Found)))
}

func TestLastSearchWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeBook(t, dir, "foundation.fb2", fixture{title: "Foundation", first: "Isaac", last: "Asimov"})
	writeBook(t, dir, "dune.fb2", fixture{title: "Dune", first: "Frank", last: "Herbert"})
	writeBook(t, dir, "hobbit.fb2", fixture{title: "The Hobbit", first: "John", last: "Tolkien"})
	l := openLibrary(t, newTestDB(t), dir, newCountingResolver())

	events, cancel := l.Subscribe(256)
	defer cancel()

	l.StartBookSearch("asimov")
	l.StartBookSearch("tolkien")
	l.StartBookSearch("herbert")
	got := collectUntilIdle(t, events)

	found := l.Tree(tree.Found)
	require.NotNil(t, found)
	assert.Equal(t, "herbert", found.Pattern)
	assert.Equal(t, []string{"Dune"}, childNames(found))

	var last Event
	for _, ev := range got {
		if ev.Code == Found {
			last = ev
		}
	}
	assert.Equal(t, "herbert", last.Pattern)
}

func TestListMutationsNotify(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeBook(t, dir, "dune.fb2", fixture{title: "Dune"})
	l := openLibrary(t, newTestDB(t), dir, newCountingResolver())
	ctx := context.Background()
	b := bookAt(t, l, path)

	events, cancel := l.Subscribe(16)
	defer cancel()

	require.NoError(t, l.AddBookToRecentList(ctx, b))
	waitForEvent(t, events, BookAdded)

	_, err := l.AddBookToFavorites(ctx, b)
	require.NoError(t, err)
	waitForEvent(t, events, BookAdded)
}

func TestConcurrentRecentUpdatesAgree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var paths []string
	for i := range 8 {
		paths = append(paths, writeBook(t, dir, fmt.Sprintf("book%d.fb2", i), fixture{title: fmt.Sprintf("Book %d", i)}))
	}
	db := newTestDB(t)
	l := openLibrary(t, db, dir, newCountingResolver())
	ctx := context.Background()

	var books []*book.Book
	for _, p := range paths {
		books = append(books, bookAt(t, l, p))
	}

	var wg sync.WaitGroup
	for round := range 5 {
		for i, b := range books {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if (i+round)%3 == 0 {
					assert.NoError(t, l.AddBookToRecentList(ctx, b))
					return
				}
				assert.NoError(t, l.AddBookToRecentList(ctx, books[(i+1)%len(books)]))
			}()
		}
	}
	wg.Wait()

	stored, err := db.LoadRecentBookIDs(ctx)
	require.NoError(t, err)
	view := l.Tree(tree.Recent)
	require.Len(t, view.Children, len(stored))
	for i, child := range view.Children {
		assert.Equal(t, stored[i], child.BookID, "position %d", i)
	}
}

func TestCloseStopsNewWork(t *testing.T) {
	t.Parallel()

	l, err := New(Options{Store: newTestDB(t), Resolver: newCountingResolver(), BooksDir: t.TempDir()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				l.StartBuild()
				l.StartBookSearch("dune")
			}
		}()
	}
	l.Close()
	wg.Wait()

	l.mu.Lock()
	building, searching := l.building, l.searchRunning
	l.mu.Unlock()
	assert.False(t, building)
	assert.False(t, searching)
	assert.False(t, l.StartBuild())
}
