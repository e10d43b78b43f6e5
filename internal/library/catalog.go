package library

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"booklib/internal/book"
	"booklib/internal/bookfile"
	"booklib/internal/database"
	"booklib/internal/logging"
	"booklib/internal/tree"
)

// RemoveMode selects what RemoveBook removes.
type RemoveMode int

const (
	RemoveDontRemove  RemoveMode = 0
	RemoveFromLibrary RemoveMode = 1 << 0
	RemoveFromDisk    RemoveMode = 1 << 1

	RemoveFromLibraryAndDisk = RemoveFromLibrary | RemoveFromDisk
)

// ErrPartialRemoval reports that a book left the library but its file could
// not be deleted.
var ErrPartialRemoval = errors.New("book removed from library but not from disk")

// BookByFile returns the book stored in f. Books not in memory are loaded
// from the catalog and re-read when the file changed since it was
// catalogued. Returns nil when f holds no readable book.
func (l *Library) BookByFile(ctx context.Context, f *bookfile.File) (*book.Book, error) {
	if f == nil {
		return nil, nil
	}

	l.mu.Lock()
	b := l.books[f.Key()]
	l.mu.Unlock()
	if b != nil {
		return b, nil
	}

	physical := f.PhysicalFile()
	if physical != nil && !physical.Exists() {
		return nil, nil
	}

	fileID := l.registry.ID(f)
	rec, err := l.store.LoadBookByFileID(ctx, fileID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("load book %s: %w", f.Key(), err)
	}
	if rec != nil {
		b = book.FromRecord(rec, f, l.store)
		if physical == nil || l.registry.Check(physical, !physical.Equal(f)) {
			return b, nil
		}
	}
	l.flushIdentities(ctx)

	if b == nil {
		b = book.New(f, fileID, l.store)
	}
	if !l.readBook(ctx, b) {
		l.invalidate(ctx, rec)
		return nil, nil
	}
	if err := b.Save(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// BookByID returns the catalogued book with id, re-reading it when its file
// changed. Returns nil when the book is unknown or its file is gone.
func (l *Library) BookByID(ctx context.Context, id int64) (*book.Book, error) {
	l.mu.Lock()
	b := l.byID[id]
	l.mu.Unlock()
	if b != nil {
		return b, nil
	}
	return l.loadBookByID(ctx, id)
}

func (l *Library) loadBookByID(ctx context.Context, id int64) (*book.Book, error) {
	rec, err := l.store.LoadBook(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load book %d: %w", id, err)
	}

	f := bookfile.ParseKey(rec.FileKey, l.resources)
	b := book.FromRecord(rec, f, l.store)

	physical := f.PhysicalFile()
	if physical == nil {
		return b, nil
	}
	if !physical.Exists() {
		return nil, nil
	}
	if l.registry.Check(physical, !physical.Equal(f)) {
		return b, nil
	}
	l.flushIdentities(ctx)

	if !l.readBook(ctx, b) {
		l.invalidate(ctx, rec)
		return nil, nil
	}
	if err := b.Save(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (l *Library) invalidate(ctx context.Context, rec *database.BookRecord) {
	if rec == nil {
		return
	}
	if err := l.store.SetExistingFlag(ctx, []int64{rec.ID}, false); err != nil {
		logging.Warn("Failed to invalidate book %d: %v", rec.ID, err)
	}
}

func (l *Library) flushIdentities(ctx context.Context) {
	if err := l.registry.Flush(ctx); err != nil {
		logging.Warn("Failed to save file identities: %v", err)
	}
}

// ensureSaved gives b a catalog id.
func ensureSaved(ctx context.Context, b *book.Book) (int64, error) {
	if id := b.ID(); id != book.Unsaved {
		return id, nil
	}
	if err := b.Save(ctx); err != nil {
		return book.Unsaved, fmt.Errorf("%w: %w", book.ErrNotSaved, err)
	}
	return b.ID(), nil
}

// AddBookToRecentList moves b to the front of the recent list.
func (l *Library) AddBookToRecentList(ctx context.Context, b *book.Book) error {
	id, err := ensureSaved(ctx, b)
	if err != nil {
		return err
	}

	l.recentMu.Lock()
	defer l.recentMu.Unlock()

	ids, err := l.store.LoadRecentBookIDs(ctx)
	if err != nil {
		return fmt.Errorf("load recent list: %w", err)
	}
	ids = slices.DeleteFunc(ids, func(other int64) bool { return other == id })
	ids = slices.Insert(ids, 0, id)
	if len(ids) > RecentListSize {
		ids = ids[:RecentListSize]
	}
	if err := l.store.SaveRecentBookIDs(ctx, ids); err != nil {
		return fmt.Errorf("save recent list: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.root.Category(tree.Recent).MoveBookToFront(b, RecentListSize)
	l.publishLocked(BookAdded)
	return nil
}

// RecentBook returns the most recently opened book, or nil.
func (l *Library) RecentBook(ctx context.Context) (*book.Book, error) {
	return l.recentAt(ctx, 0)
}

// PreviousBook returns the book opened before the most recent one, or nil.
func (l *Library) PreviousBook(ctx context.Context) (*book.Book, error) {
	return l.recentAt(ctx, 1)
}

func (l *Library) recentAt(ctx context.Context, i int) (*book.Book, error) {
	ids, err := l.store.LoadRecentBookIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recent list: %w", err)
	}
	if len(ids) <= i {
		return nil, nil
	}
	return l.BookByID(ctx, ids[i])
}

// IsBookInFavorites reports whether b is a favorite.
func (l *Library) IsBookInFavorites(b *book.Book) bool {
	if b == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.root.Category(tree.Favorites).BookLeaf(b) != nil
}

// AddBookToFavorites marks b as a favorite. Returns false when it already is.
func (l *Library) AddBookToFavorites(ctx context.Context, b *book.Book) (bool, error) {
	l.mu.Lock()
	favorites := l.root.Category(tree.Favorites)
	if favorites.BookLeaf(b) != nil {
		l.mu.Unlock()
		return false, nil
	}
	favorites.AddBook(b)
	l.publishLocked(BookAdded)
	l.mu.Unlock()

	id, err := ensureSaved(ctx, b)
	if err == nil {
		_, err = l.store.AddToFavorites(ctx, id)
	}
	if err != nil {
		l.mu.Lock()
		favorites.RemoveBook(b, false)
		l.publishLocked(BookRemoved)
		l.mu.Unlock()
		return false, fmt.Errorf("add favorite: %w", err)
	}
	return true, nil
}

// RemoveBookFromFavorites unmarks b. Returns false when it was no favorite.
func (l *Library) RemoveBookFromFavorites(ctx context.Context, b *book.Book) (bool, error) {
	l.mu.Lock()
	removed := l.root.Category(tree.Favorites).RemoveBook(b, false)
	if removed {
		l.publishLocked(BookRemoved)
	}
	l.mu.Unlock()

	if !removed {
		return false, nil
	}
	if id := b.ID(); id != book.Unsaved {
		if _, err := l.store.RemoveFromFavorites(ctx, id); err != nil {
			return true, fmt.Errorf("remove favorite: %w", err)
		}
	}
	return true, nil
}

// CanRemoveBookFile reports whether deleting b's file deletes only b. Books
// inside an archive qualify only when the archive holds nothing else.
func (l *Library) CanRemoveBookFile(b *book.Book) bool {
	f := b.File()
	if f.PhysicalFile() == nil {
		return false
	}
	for f.Kind() == bookfile.KindArchiveEntry {
		f = f.Parent()
		children, err := f.Children()
		if err != nil || len(children) != 1 {
			return false
		}
	}
	return true
}

// RemoveBook takes b out of the library and, with RemoveFromDisk, deletes
// its file. A failed deletion does not undo the library removal and is
// reported as ErrPartialRemoval.
func (l *Library) RemoveBook(ctx context.Context, b *book.Book, mode RemoveMode) (bool, error) {
	if mode == RemoveDontRemove || b == nil {
		return false, nil
	}

	l.mu.Lock()
	l.forgetBookLocked(b)
	l.publishLocked(BookRemoved)
	l.mu.Unlock()

	var errs []error
	if id := b.ID(); id != book.Unsaved {
		errs = append(errs, l.dropFromRecent(ctx, id))
		_, err := l.store.RemoveFromFavorites(ctx, id)
		errs = append(errs, err)
		errs = append(errs, l.store.SetExistingFlag(ctx, []int64{id}, false))
	}
	if err := errors.Join(errs...); err != nil {
		return true, fmt.Errorf("remove book %s from catalog: %w", b.Key(), err)
	}

	if mode&RemoveFromDisk != 0 {
		physical := b.File().PhysicalFile()
		if physical == nil {
			return true, fmt.Errorf("%w: %s has no file on disk", ErrPartialRemoval, b.Key())
		}
		if err := physical.Delete(); err != nil {
			return true, fmt.Errorf("%w: %w", ErrPartialRemoval, err)
		}
		l.registry.Evict(physical)
		l.flushIdentities(ctx)
		logging.Info("Deleted %s", physical.Path())
	}
	return true, nil
}

// dropFromRecent removes id from the stored recent list.
func (l *Library) dropFromRecent(ctx context.Context, id int64) error {
	l.recentMu.Lock()
	defer l.recentMu.Unlock()

	ids, err := l.store.LoadRecentBookIDs(ctx)
	if err != nil {
		return err
	}
	i := slices.Index(ids, id)
	if i < 0 {
		return nil
	}
	return l.store.SaveRecentBookIDs(ctx, slices.Delete(ids, i, i+1))
}

// AllBookmarks returns every visible bookmark.
func (l *Library) AllBookmarks(ctx context.Context) ([]database.Bookmark, error) {
	return l.store.LoadAllVisibleBookmarks(ctx)
}

// InvisibleBookmarks returns the hidden bookmarks of b, newest first.
func (l *Library) InvisibleBookmarks(ctx context.Context, b *book.Book) ([]database.Bookmark, error) {
	if b.ID() == book.Unsaved {
		return nil, nil
	}
	list, err := l.store.LoadBookmarks(ctx, b.ID(), false)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].LatestTime().After(list[j].LatestTime())
	})
	return list, nil
}

// SaveBookmark creates or updates a bookmark.
func (l *Library) SaveBookmark(ctx context.Context, bm *database.Bookmark) error {
	return l.store.SaveBookmark(ctx, bm)
}

// DeleteBookmark removes a bookmark.
func (l *Library) DeleteBookmark(ctx context.Context, id int64) error {
	return l.store.DeleteBookmark(ctx, id)
}

// StoredPosition returns the saved reading position of b, or nil.
func (l *Library) StoredPosition(ctx context.Context, b *book.Book) (*database.Position, error) {
	if b.ID() == book.Unsaved {
		return nil, nil
	}
	return l.store.GetStoredPosition(ctx, b.ID())
}

// StorePosition saves the reading position of b.
func (l *Library) StorePosition(ctx context.Context, b *book.Book, pos database.Position) error {
	id, err := ensureSaved(ctx, b)
	if err != nil {
		return err
	}
	return l.store.StorePosition(ctx, id, pos)
}

// ReloadBookFromFile re-reads b from its file, saves it and refiles it.
func (l *Library) ReloadBookFromFile(ctx context.Context, b *book.Book) error {
	if err := b.ReadMetaInfo(ctx, l.resolver); err != nil {
		return err
	}
	if err := b.Save(ctx); err != nil {
		return err
	}
	l.RefreshBookInfo(b)
	return nil
}
