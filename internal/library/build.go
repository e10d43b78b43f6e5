package library

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"booklib/internal/book"
	"booklib/internal/bookfile"
	"booklib/internal/database"
	"booklib/internal/logging"
	"booklib/internal/metrics"
	"booklib/internal/tree"
)

// notifyEvery is how many verified books are added between notifications.
const notifyEvery = 16

// StartBuild starts a background build. While one is running, further calls
// only publish StatusChanged. Returns whether a build was started.
func (l *Library) StartBuild() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.building {
		metrics.BuildCoalescedTotal.Inc()
		l.publishLocked(StatusChanged)
		return false
	}
	if l.ctx.Err() != nil {
		return false
	}

	l.building = true
	l.addStatusFlagsLocked(StatusLoading)
	metrics.BuildIsRunning.Set(1)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.finishBuild()

		if err := l.build(l.ctx); err != nil {
			metrics.BuildErrors.Inc()
			logging.Error("Library build failed: %v", err)
		}
	}()
	return true
}

func (l *Library) finishBuild() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.building = false
	l.lastBuild = time.Now()
	metrics.BuildIsRunning.Set(0)
	l.removeStatusFlagsLocked(StatusLoading)
}

// buildPass holds the state of one build.
type buildPass struct {
	savedByFileID    map[int64]*book.Book
	orphanedByFileID map[int64]*book.Book
	claimed          map[int64]struct{}
	newBooks         []*book.Book
	visitedDirs      map[string]struct{}
}

func newBuildPass() *buildPass {
	return &buildPass{
		savedByFileID:    make(map[int64]*book.Book),
		orphanedByFileID: make(map[int64]*book.Book),
		claimed:          make(map[int64]struct{}),
		visitedDirs:      make(map[string]struct{}),
	}
}

func (l *Library) build(ctx context.Context) error {
	start := time.Now()
	metrics.BuildRunsTotal.Inc()
	logging.Info("Starting library build in %s", l.booksDir.Path())

	pass := newBuildPass()

	phases := []struct {
		name string
		run  func(context.Context, *buildPass) error
	}{
		{"prime", l.primeFromCatalog},
		{"verify", l.verifyExisting},
		{"discover", l.discoverFiles},
		{"help", l.addHelpBook},
		{"commit", l.commit},
	}
	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		phaseStart := time.Now()
		err := phase.run(ctx, pass)
		metrics.BuildPhaseDuration.WithLabelValues(phase.name).Observe(time.Since(phaseStart).Seconds())
		if err != nil {
			return fmt.Errorf("%s phase: %w", phase.name, err)
		}
		logging.Debug("Build phase %s done in %v", phase.name, time.Since(phaseStart))
	}

	duration := time.Since(start)
	metrics.BuildLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.BuildLastRunDuration.Set(duration.Seconds())

	stats := l.Stats()
	metrics.LibraryBooksTotal.Set(float64(stats.TotalBooks))
	logging.Info("Library build complete: %d books (%d new) in %v", stats.TotalBooks, len(pass.newBooks), duration)
	return nil
}

// primeFromCatalog installs the books found present by the previous build,
// together with the favorites and recent lists, before any disk access.
// Books already in memory keep their instances, and with them any unsaved
// state.
func (l *Library) primeFromCatalog(ctx context.Context, pass *buildPass) error {
	records, err := l.store.LoadBooks(ctx, true)
	if err != nil {
		return fmt.Errorf("load books: %w", err)
	}

	l.mu.Lock()
	previous := l.books
	l.mu.Unlock()

	savedByID := make(map[int64]*book.Book, len(records))
	primed := make([]*book.Book, 0, len(records))
	reused := 0
	for _, rec := range records {
		b := previous[rec.FileKey]
		if b != nil && b.ID() == rec.ID {
			reused++
		} else {
			b = book.FromRecord(rec, bookfile.ParseKey(rec.FileKey, l.resources), l.store)
		}
		b.SetFileID(l.registry.ID(b.File()))
		pass.savedByFileID[b.FileID()] = b
		savedByID[rec.ID] = b
		primed = append(primed, b)
	}

	l.recentMu.Lock()
	defer l.recentMu.Unlock()

	recent := l.resolveIDs(ctx, l.store.LoadRecentBookIDs, savedByID)
	favorites := l.resolveIDs(ctx, l.store.LoadFavoriteIDs, savedByID)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.books = make(map[string]*book.Book, len(primed))
	l.byID = make(map[int64]*book.Book, len(primed))
	l.root = tree.NewRoot()
	l.groupTitles = groupTitlesByLetter(primed)

	recentNode := l.root.Category(tree.Recent)
	for _, b := range recent {
		recentNode.AddBook(b)
	}
	favoritesNode := l.root.Category(tree.Favorites)
	for _, b := range favorites {
		favoritesNode.AddBook(b)
	}
	for _, b := range primed {
		l.addBookLocked(b)
	}
	l.restartSearchLocked()
	l.publishLocked(BookAdded)

	logging.Info("Primed %d books from catalog, %d kept in memory (grouping titles: %v)", len(primed), reused, l.groupTitles)
	return nil
}

// resolveIDs maps stored ids onto books, preferring primed ones. Ids whose
// files are gone are dropped silently.
func (l *Library) resolveIDs(ctx context.Context, load func(context.Context) ([]int64, error), saved map[int64]*book.Book) []*book.Book {
	ids, err := load(ctx)
	if err != nil {
		logging.Warn("Failed to load book list: %v", err)
		return nil
	}

	var out []*book.Book
	for _, id := range ids {
		if b := saved[id]; b != nil {
			out = append(out, b)
			continue
		}
		b, err := l.loadBookByID(ctx, id)
		if err != nil {
			logging.Warn("Failed to load book %d: %v", id, err)
			continue
		}
		if b != nil && b.File().Exists() {
			out = append(out, b)
		}
	}
	return out
}

// verifyExisting checks every primed book against the disk. Missing files
// become orphans; changed files are re-read.
func (l *Library) verifyExisting(ctx context.Context, pass *buildPass) error {
	var orphaned []int64
	count := 0

	for _, b := range l.sortedSaved(pass) {
		if err := ctx.Err(); err != nil {
			return err
		}

		physical := b.File().PhysicalFile()
		if physical == nil {
			continue
		}

		if !b.File().Exists() {
			l.mu.Lock()
			l.forgetBookLocked(b)
			l.publishLocked(BookRemoved)
			l.mu.Unlock()
			orphaned = append(orphaned, b.ID())
			metrics.BuildBooksTotal.WithLabelValues("orphaned").Inc()
			continue
		}

		if !l.registry.Check(physical, true) {
			if !l.readBook(ctx, b) {
				l.mu.Lock()
				l.forgetBookLocked(b)
				l.publishLocked(BookRemoved)
				l.mu.Unlock()
				l.registry.Evict(b.File())
				metrics.BuildBooksTotal.WithLabelValues("removed").Inc()
				continue
			}
			if err := b.Save(ctx); err != nil {
				logging.Warn("Failed to save refreshed book %s: %v", b.Key(), err)
			}
			l.RefreshBookInfo(b)
			metrics.BuildBooksTotal.WithLabelValues("refreshed").Inc()
		} else {
			metrics.BuildBooksTotal.WithLabelValues("verified").Inc()
		}

		if count++; count%notifyEvery == 0 {
			l.publish(BookAdded)
		}
	}
	l.publish(BookAdded)

	if len(orphaned) > 0 {
		if err := l.store.SetExistingFlag(ctx, orphaned, false); err != nil {
			return fmt.Errorf("mark orphaned books: %w", err)
		}
		logging.Info("Marked %d books as orphaned", len(orphaned))
	}
	return nil
}

func (l *Library) sortedSaved(pass *buildPass) []*book.Book {
	out := make([]*book.Book, 0, len(pass.savedByFileID))
	for _, b := range pass.savedByFileID {
		out = append(out, b)
	}
	sortBooksByKey(out)
	return out
}

// discoverFiles walks the books directory breadth first and adds every book
// not already claimed, resurrecting orphans where possible.
func (l *Library) discoverFiles(ctx context.Context, pass *buildPass) error {
	records, err := l.store.LoadBooks(ctx, false)
	if err != nil {
		return fmt.Errorf("load orphaned books: %w", err)
	}
	for _, rec := range records {
		f := bookfile.ParseKey(rec.FileKey, l.resources)
		b := book.FromRecord(rec, f, l.store)
		b.SetFileID(l.registry.ID(f))
		pass.orphanedByFileID[b.FileID()] = b
	}

	files, err := l.collectPhysicalFiles(ctx, pass)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		changed := !l.registry.Check(f, true)
		l.collectBooks(ctx, pass, f, changed)
	}
	return nil
}

func (l *Library) collectPhysicalFiles(ctx context.Context, pass *buildPass) ([]*bookfile.File, error) {
	if !l.booksDir.IsDirectory() {
		logging.Warn("Books directory %s is not accessible", l.booksDir.Path())
		return nil, nil
	}

	var files []*bookfile.File
	queue := []*bookfile.File{l.booksDir}
	l.markVisited(pass, l.booksDir)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := queue[0]
		queue = queue[1:]
		metrics.BuildDirectoriesScanned.Inc()

		children, err := dir.Children()
		if err != nil {
			logging.Warn("Failed to list %s: %v", dir.Path(), err)
			continue
		}
		for _, child := range children {
			if l.skipHidden && strings.HasPrefix(child.ShortName(), ".") {
				continue
			}
			if child.IsDirectory() {
				if l.markVisited(pass, child) {
					queue = append(queue, child)
				}
				continue
			}
			files = append(files, child)
		}
	}
	return files, nil
}

// markVisited records dir by its resolved path and reports whether it was
// new, so symlink cycles are walked once.
func (l *Library) markVisited(pass *buildPass, dir *bookfile.File) bool {
	key := dir.Path()
	if real, err := filepath.EvalSymlinks(key); err == nil {
		key = real
	}
	if _, ok := pass.visitedDirs[key]; ok {
		return false
	}
	pass.visitedDirs[key] = struct{}{}
	return true
}

func (l *Library) collectBooks(ctx context.Context, pass *buildPass, f *bookfile.File, readMeta bool) {
	fileID := l.registry.ID(f)
	if _, ok := pass.savedByFileID[fileID]; ok {
		return
	}
	if _, ok := pass.claimed[fileID]; ok {
		return
	}

	if b := pass.orphanedByFileID[fileID]; b != nil && (!readMeta || l.readBook(ctx, b)) {
		l.installNew(pass, fileID, b)
		metrics.BuildBooksTotal.WithLabelValues("resurrected").Inc()
		return
	}

	b := book.New(f, fileID, l.store)
	if l.readBook(ctx, b) {
		l.installNew(pass, fileID, b)
		metrics.BuildBooksTotal.WithLabelValues("discovered").Inc()
		return
	}

	if f.IsArchive() {
		entries, err := l.registry.ArchiveEntries(f, !readMeta)
		if err != nil {
			logging.Warn("Failed to read archive %s: %v", f.Path(), err)
			return
		}
		for _, entry := range entries {
			l.collectBooks(ctx, pass, entry, readMeta)
		}
	}
}

func (l *Library) installNew(pass *buildPass, fileID int64, b *book.Book) {
	pass.claimed[fileID] = struct{}{}
	pass.newBooks = append(pass.newBooks, b)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.addBookLocked(b)
	l.publishLocked(BookAdded)
}

// addHelpBook makes sure the help document for the configured locale is in
// the library.
func (l *Library) addHelpBook(ctx context.Context, pass *buildPass) error {
	f := l.helpFile()
	fileID := l.registry.ID(f)

	b := pass.savedByFileID[fileID]
	if b == nil {
		b = pass.orphanedByFileID[fileID]
	}
	if b == nil {
		b = book.New(f, fileID, l.store)
		if err := b.ReadMetaInfo(ctx, l.resolver); err != nil {
			logging.Warn("Help document %s: %v", f.Key(), err)
			b.SetTitle(strings.TrimSuffix(f.ShortName(), filepath.Ext(f.ShortName())))
		}
	}
	if b.ID() == book.Unsaved || pass.orphanedByFileID[fileID] == b {
		pass.newBooks = append(pass.newBooks, b)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.addBookLocked(b)
	l.publishLocked(BookAdded)
	return nil
}

// commit saves all new and resurrected books in one transaction, flags them
// as existing and flushes the file identities.
func (l *Library) commit(ctx context.Context, pass *buildPass) error {
	if len(pass.newBooks) > 0 {
		records := make([]*database.BookRecord, len(pass.newBooks))
		for i, b := range pass.newBooks {
			records[i] = b.Record()
		}
		if err := l.store.SaveBooks(ctx, records); err != nil {
			return fmt.Errorf("save %d books: %w", len(records), err)
		}

		ids := make([]int64, len(records))
		l.mu.Lock()
		for i, b := range pass.newBooks {
			b.MarkSaved(records[i].ID)
			ids[i] = records[i].ID
			l.byID[ids[i]] = b
		}
		l.mu.Unlock()

		if err := l.store.SetExistingFlag(ctx, ids, true); err != nil {
			return fmt.Errorf("mark books existing: %w", err)
		}
	}

	if err := l.registry.Flush(ctx); err != nil {
		return fmt.Errorf("save file identities: %w", err)
	}
	if err := l.store.SetLastBuild(ctx, time.Now()); err != nil {
		logging.Warn("Failed to record build time: %v", err)
	}
	return nil
}
