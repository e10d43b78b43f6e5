package book

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"

	"booklib/internal/bookfile"
	"booklib/internal/database"
	"booklib/internal/formats"
)

// Unsaved is the id of a book that has never been persisted.
const Unsaved int64 = -1

var (
	// ErrResolution wraps every failure to read metadata from a book file.
	ErrResolution = errors.New("metadata resolution failed")

	// ErrNotSaved is returned when a book has no backing store.
	ErrNotSaved = errors.New("book is not backed by a store")
)

// Store is the persistence a book needs for itself.
type Store interface {
	SaveBook(ctx context.Context, rec *database.BookRecord) error
	LoadVisitedHyperlinks(ctx context.Context, bookID int64) ([]string, error)
	AddVisitedHyperlink(ctx context.Context, bookID int64, link string) error
}

// Book is one catalog item. Books compare equal when they refer to the same
// file, whether or not either has been saved.
type Book struct {
	mu sync.RWMutex

	id     int64
	file   *bookfile.File
	fileID int64
	store  Store

	title    string
	language string
	encoding string
	authors  []Author
	tags     []*Tag
	series   *SeriesInfo

	visited map[string]struct{} // nil until loaded
	pending []string            // links marked before the first save

	dirty bool
}

// New returns an unsaved book for file.
func New(file *bookfile.File, fileID int64, store Store) *Book {
	return &Book{id: Unsaved, file: file, fileID: fileID, store: store}
}

// FromRecord builds a saved book from its catalog row.
func FromRecord(rec *database.BookRecord, file *bookfile.File, store Store) *Book {
	b := &Book{
		id:       rec.ID,
		file:     file,
		fileID:   rec.FileID,
		store:    store,
		title:    rec.Title,
		language: rec.Language,
		encoding: rec.Encoding,
	}
	for _, a := range rec.Authors {
		if author, ok := NewAuthor(a.Name, a.SortKey); ok {
			b.authors = append(b.authors, author)
		}
	}
	for _, p := range rec.Tags {
		if tag := TagFromPath(p); tag != nil {
			b.tags = append(b.tags, tag)
		}
	}
	if rec.Series != nil && rec.Series.Name != "" {
		b.series = &SeriesInfo{Name: rec.Series.Name, Index: rec.Series.Index}
	}
	return b
}

// ID returns the catalog id, or Unsaved.
func (b *Book) ID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

// File returns the file the book was read from.
func (b *Book) File() *bookfile.File { return b.file }

// Key returns the stable key of the book's file.
func (b *Book) Key() string { return b.file.Key() }

// FileID returns the content identity id of the book's file.
func (b *Book) FileID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fileID
}

// SetFileID rebinds the book to a content identity.
func (b *Book) SetFileID(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fileID != id {
		b.fileID = id
		b.dirty = true
	}
}

// Equal reports whether both books refer to the same file.
func (b *Book) Equal(other *Book) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.file.Equal(other.file)
}

func (b *Book) Title() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.title
}

func (b *Book) Language() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.language
}

func (b *Book) Encoding() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.encoding
}

// Authors returns a copy of the ordered author list.
func (b *Book) Authors() []Author {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.authors)
}

// Tags returns a copy of the ordered tag list.
func (b *Book) Tags() []*Tag {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.tags)
}

// Series returns the series membership, or nil.
func (b *Book) Series() *SeriesInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.series == nil {
		return nil
	}
	s := *b.series
	return &s
}

// IsDirty reports whether the book has unsaved changes.
func (b *Book) IsDirty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dirty
}

func (b *Book) SetTitle(title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setTitleLocked(title)
}

func (b *Book) setTitleLocked(title string) {
	if b.title != title {
		b.title = title
		b.dirty = true
	}
}

func (b *Book) SetLanguage(language string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.language != language {
		b.language = language
		b.dirty = true
	}
}

func (b *Book) SetEncoding(encoding string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.encoding != encoding {
		b.encoding = encoding
		b.dirty = true
	}
}

// AddAuthor appends an author unless it is already listed.
func (b *Book) AddAuthor(name, sortKey string) {
	author, ok := NewAuthor(name, sortKey)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !slices.Contains(b.authors, author) {
		b.authors = append(b.authors, author)
		b.dirty = true
	}
}

// AddTag appends a tag unless an equal tag is already listed.
func (b *Book) AddTag(tag *Tag) {
	if tag == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tags {
		if t.Equal(tag) {
			return
		}
	}
	b.tags = append(b.tags, tag)
	b.dirty = true
}

// AddTagPath appends the tag for a slash separated path.
func (b *Book) AddTagPath(p string) {
	b.AddTag(TagFromPath(p))
}

// SetSeriesInfo sets the series membership. An empty name clears it.
func (b *Book) SetSeriesInfo(name string, index float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setSeriesLocked(name, index)
}

func (b *Book) setSeriesLocked(name string, index float64) {
	name = strings.TrimSpace(name)
	if name == "" {
		if b.series != nil {
			b.series = nil
			b.dirty = true
		}
		return
	}
	if b.series == nil || b.series.Name != name || b.series.Index != index {
		b.series = &SeriesInfo{Name: name, Index: index}
		b.dirty = true
	}
}

type metaSnapshot struct {
	title, language, encoding string
	authors                   []Author
	tags                      []string
	series                    *SeriesInfo
}

func (b *Book) snapshotLocked() metaSnapshot {
	s := metaSnapshot{
		title:    b.title,
		language: b.language,
		encoding: b.encoding,
		authors:  slices.Clone(b.authors),
	}
	for _, t := range b.tags {
		s.tags = append(s.tags, t.FullName())
	}
	if b.series != nil {
		series := *b.series
		s.series = &series
	}
	return s
}

func (s metaSnapshot) equal(o metaSnapshot) bool {
	if s.title != o.title || s.language != o.language || s.encoding != o.encoding {
		return false
	}
	if !slices.Equal(s.authors, o.authors) || !slices.Equal(s.tags, o.tags) {
		return false
	}
	if (s.series == nil) != (o.series == nil) {
		return false
	}
	return s.series == nil || *s.series == *o.series
}

// ReadMetaInfo replaces the book's metadata with what resolver extracts from
// its file. The book is marked dirty only if the result differs from what it
// had before. On failure the previous metadata is kept and the error wraps
// ErrResolution.
func (b *Book) ReadMetaInfo(ctx context.Context, resolver formats.Resolver) error {
	md, err := resolver.Resolve(ctx, b.file)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrResolution, b.file.Key(), err)
	}
	if md == nil {
		return fmt.Errorf("%w: %s: no metadata", ErrResolution, b.file.Key())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	before := b.snapshotLocked()
	wasDirty := b.dirty

	b.authors, b.tags, b.series = nil, nil, nil

	b.title = strings.TrimSpace(md.Title)
	if b.title == "" {
		name := b.file.ShortName()
		b.title = strings.TrimSuffix(name, path.Ext(name))
	}
	b.language = md.Language
	b.encoding = md.Encoding
	for _, a := range md.Authors {
		if author, ok := NewAuthor(a.Name, a.SortKey); ok && !slices.Contains(b.authors, author) {
			b.authors = append(b.authors, author)
		}
	}
	for _, p := range md.Tags {
		tag := TagFromPath(p)
		if tag == nil || slices.ContainsFunc(b.tags, tag.Equal) {
			continue
		}
		b.tags = append(b.tags, tag)
	}
	if md.Series != nil {
		b.setSeriesLocked(md.Series.Name, md.Series.Index)
	}

	b.dirty = wasDirty || !before.equal(b.snapshotLocked())
	return nil
}

// Record returns the persisted form of the book.
func (b *Book) Record() *database.BookRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.recordLocked()
}

func (b *Book) recordLocked() *database.BookRecord {
	rec := &database.BookRecord{
		FileID:   b.fileID,
		FileKey:  b.file.Key(),
		Title:    b.title,
		Encoding: b.encoding,
		Language: b.language,
	}
	if b.id != Unsaved {
		rec.ID = b.id
	}
	for _, a := range b.authors {
		rec.Authors = append(rec.Authors, database.AuthorRecord{Name: a.DisplayName, SortKey: a.SortKey})
	}
	for _, t := range b.tags {
		rec.Tags = append(rec.Tags, t.FullName())
	}
	if b.series != nil {
		rec.Series = &database.SeriesRecord{Name: b.series.Name, Index: b.series.Index}
	}
	return rec
}

// Save persists the book if it has unsaved changes. A failed save leaves the
// book dirty so it can be retried.
func (b *Book) Save(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dirty && b.id != Unsaved {
		return nil
	}
	if b.store == nil {
		return ErrNotSaved
	}

	rec := b.recordLocked()
	if err := b.store.SaveBook(ctx, rec); err != nil {
		return fmt.Errorf("save book %s: %w", b.file.Key(), err)
	}
	b.markSavedLocked(rec.ID)

	for len(b.pending) > 0 {
		if err := b.store.AddVisitedHyperlink(ctx, b.id, b.pending[0]); err != nil {
			return fmt.Errorf("save visited link: %w", err)
		}
		b.pending = b.pending[1:]
	}
	return nil
}

// MarkSaved records that the book was persisted with id by a batch save.
func (b *Book) MarkSaved(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markSavedLocked(id)
}

func (b *Book) markSavedLocked(id int64) {
	b.id = id
	b.dirty = false
}

// IsHyperlinkVisited reports whether link was followed in this book.
func (b *Book) IsHyperlinkVisited(ctx context.Context, link string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.loadVisitedLocked(ctx); err != nil {
		return false, err
	}
	_, ok := b.visited[link]
	return ok, nil
}

// MarkHyperlinkVisited records link as followed. Links marked on an unsaved
// book are persisted by the first Save.
func (b *Book) MarkHyperlinkVisited(ctx context.Context, link string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.loadVisitedLocked(ctx); err != nil {
		return err
	}
	if _, ok := b.visited[link]; ok {
		return nil
	}
	b.visited[link] = struct{}{}

	if b.id == Unsaved || b.store == nil {
		b.pending = append(b.pending, link)
		return nil
	}
	return b.store.AddVisitedHyperlink(ctx, b.id, link)
}

func (b *Book) loadVisitedLocked(ctx context.Context) error {
	if b.visited != nil {
		return nil
	}
	b.visited = make(map[string]struct{})
	if b.id == Unsaved || b.store == nil {
		return nil
	}
	links, err := b.store.LoadVisitedHyperlinks(ctx, b.id)
	if err != nil {
		b.visited = nil
		return fmt.Errorf("load visited links: %w", err)
	}
	for _, l := range links {
		b.visited[l] = struct{}{}
	}
	return nil
}

// fold case-folds s. Casers keep state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// FoldPattern prepares a search pattern for Matches.
func FoldPattern(pattern string) string {
	return fold(strings.TrimSpace(pattern))
}

// Matches reports whether the folded pattern occurs in the title, series
// name, an author or tag name, or the file's long name.
func (b *Book) Matches(folded string) bool {
	if folded == "" {
		return false
	}
	contains := func(s string) bool {
		return s != "" && strings.Contains(fold(s), folded)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if contains(b.title) {
		return true
	}
	if b.series != nil && contains(b.series.Name) {
		return true
	}
	for _, a := range b.authors {
		if contains(a.DisplayName) {
			return true
		}
	}
	for _, t := range b.tags {
		if contains(t.Name) {
			return true
		}
	}
	return contains(b.file.LongName())
}

// TitleLetter returns the upper-cased first letter or digit of the title, or
// the empty string when the title does not start with one.
func (b *Book) TitleLetter() string {
	title := strings.TrimSpace(b.Title())
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return string(unicode.ToUpper(r))
		}
		break
	}
	return ""
}

func (b *Book) String() string {
	return fmt.Sprintf("%s (%s)", b.Title(), b.file.Key())
}
