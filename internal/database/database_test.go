package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleBook(fileID int64, key, title string) *BookRecord {
	return &BookRecord{
		FileID:   fileID,
		FileKey:  key,
		Title:    title,
		Language: "en",
		Encoding: "utf-8",
		Authors: []AuthorRecord{
			{Name: "Isaac Asimov", SortKey: "asimov"},
			{Name: "Robert Silverberg", SortKey: "silverberg"},
		},
		Tags:   []string{"Fiction/Science Fiction", "Classics"},
		Series: &SeriesRecord{Name: "Robots", Index: 2},
		Exists: true,
	}
}

func TestRecordQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "successful query", err: nil},
		{name: "failed query", err: errors.New("test error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.NotPanics(t, func() {
				done := observeQuery("test_operation")
				done(tt.err)
			})
		})
	}
}

func TestNewCreatesSchema(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var exists bool
	require.NoError(t, db.db.QueryRowContext(ctx,
		"SELECT COUNT(*) > 0 FROM pragma_table_info('books') WHERE name='exist'").Scan(&exists))
	assert.True(t, exists)

	// Opening again must be idempotent.
	again, err := New(ctx, db.Path())
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestSaveAndLoadBooks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := sampleBook(1, "/books/a.fb2", "Alpha")
	b := &BookRecord{FileID: 2, FileKey: "/books/b.epub", Title: "Beta", Exists: true}

	require.NoError(t, db.SaveBooks(ctx, []*BookRecord{a, b}))
	assert.Positive(t, a.ID)
	assert.Positive(t, b.ID)
	assert.NotEqual(t, a.ID, b.ID)

	books, err := db.LoadBooks(ctx, true)
	require.NoError(t, err)
	require.Len(t, books, 2)

	loaded := books[0]
	assert.Equal(t, "Alpha", loaded.Title)
	assert.Equal(t, "en", loaded.Language)
	assert.Equal(t, []AuthorRecord{
		{Name: "Isaac Asimov", SortKey: "asimov"},
		{Name: "Robert Silverberg", SortKey: "silverberg"},
	}, loaded.Authors)
	assert.Equal(t, []string{"Fiction/Science Fiction", "Classics"}, loaded.Tags)
	require.NotNil(t, loaded.Series)
	assert.Equal(t, "Robots", loaded.Series.Name)
	assert.InDelta(t, 2.0, loaded.Series.Index, 0.0001)
	assert.True(t, loaded.Exists)

	assert.Empty(t, books[1].Authors)
	assert.Nil(t, books[1].Series)
}

func TestSaveBookUpdatesRelations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := sampleBook(1, "/books/a.fb2", "Alpha")
	require.NoError(t, db.SaveBook(ctx, rec))
	id := rec.ID

	rec.Title = "Alpha (revised)"
	rec.Authors = []AuthorRecord{{Name: "Robert Silverberg", SortKey: "silverberg"}}
	rec.Tags = nil
	rec.Series = nil
	require.NoError(t, db.SaveBook(ctx, rec))
	assert.Equal(t, id, rec.ID)

	loaded, err := db.LoadBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alpha (revised)", loaded.Title)
	assert.Len(t, loaded.Authors, 1)
	assert.Empty(t, loaded.Tags)
	assert.Nil(t, loaded.Series)

	byFile, err := db.LoadBookByFileID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, id, byFile.ID)
}

func TestSaveBookNewRecordReusesFileRow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := &BookRecord{FileID: 9, FileKey: "/books/x.fb2", Title: "X"}
	require.NoError(t, db.SaveBook(ctx, first))

	second := &BookRecord{FileID: 9, FileKey: "/books/x.fb2", Title: "X again"}
	require.NoError(t, db.SaveBook(ctx, second))
	assert.Equal(t, first.ID, second.ID)
}

func TestLoadBookNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.LoadBook(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.LoadBookByFileID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetExistingFlag(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := &BookRecord{FileID: 1, FileKey: "/books/a.fb2", Title: "A", Exists: true}
	b := &BookRecord{FileID: 2, FileKey: "/books/b.fb2", Title: "B", Exists: true}
	require.NoError(t, db.SaveBooks(ctx, []*BookRecord{a, b}))

	require.NoError(t, db.SetExistingFlag(ctx, []int64{a.ID}, false))

	existing, err := db.LoadBooks(ctx, true)
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.Equal(t, "B", existing[0].Title)

	orphaned, err := db.LoadBooks(ctx, false)
	require.NoError(t, err)
	require.Len(t, orphaned, 1)
	assert.False(t, orphaned[0].Exists)

	count, err := db.CountBooks(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, db.SetExistingFlag(ctx, nil, true))
}

func TestSavedBooksStayOrphanedUntilFlagged(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := &BookRecord{FileID: 1, FileKey: "/elsewhere/a.fb2", Title: "A"}
	require.NoError(t, db.SaveBook(ctx, rec))

	count, err := db.CountBooks(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Updating the row does not touch the flag either way.
	require.NoError(t, db.SetExistingFlag(ctx, []int64{rec.ID}, true))
	rec.Title = "A, revised"
	rec.Exists = false
	require.NoError(t, db.SaveBook(ctx, rec))

	existing, err := db.LoadBooks(ctx, true)
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.Equal(t, "A, revised", existing[0].Title)
}

func TestRecentList(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ids, err := db.LoadRecentBookIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, db.SaveRecentBookIDs(ctx, []int64{3, 1, 2}))
	ids, err = db.LoadRecentBookIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	require.NoError(t, db.SaveRecentBookIDs(ctx, []int64{2}))
	ids, err = db.LoadRecentBookIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)
}

func TestFavorites(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	added, err := db.AddToFavorites(ctx, 5)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = db.AddToFavorites(ctx, 5)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = db.AddToFavorites(ctx, 7)
	require.NoError(t, err)

	ids, err := db.LoadFavoriteIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 7}, ids)

	removed, err := db.RemoveFromFavorites(ctx, 5)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = db.RemoveFromFavorites(ctx, 5)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestFileInfos(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	infos := []FileInfo{
		{ID: 1, Key: "/books/set.zip", Size: 100, ModTime: 10},
		{ID: 2, Key: "/books/set.zip!/a.fb2", ParentID: 1, Size: 50, ModTime: 10},
	}
	require.NoError(t, db.SaveFileInfos(ctx, infos, nil))

	loaded, err := db.LoadFileInfos(ctx)
	require.NoError(t, err)
	assert.Equal(t, infos, loaded)

	infos[0].Size = 120
	require.NoError(t, db.SaveFileInfos(ctx, infos[:1], []int64{2}))

	loaded, err = db.LoadFileInfos(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(120), loaded[0].Size)
}

func TestBookmarksAndPositions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	book := &BookRecord{FileID: 1, FileKey: "/books/a.fb2", Title: "Alpha"}
	require.NoError(t, db.SaveBook(ctx, book))

	visible := &Bookmark{BookID: book.ID, Text: "chapter one", Paragraph: 3, Visible: true}
	hidden := &Bookmark{BookID: book.ID, Text: "auto", Paragraph: 9, Visible: false,
		AccessedAt: time.Now()}
	require.NoError(t, db.SaveBookmark(ctx, visible))
	require.NoError(t, db.SaveBookmark(ctx, hidden))
	assert.Positive(t, visible.ID)

	all, err := db.LoadAllVisibleBookmarks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Alpha", all[0].BookTitle)
	assert.Equal(t, 3, all[0].Paragraph)

	invisible, err := db.LoadBookmarks(ctx, book.ID, false)
	require.NoError(t, err)
	require.Len(t, invisible, 1)
	assert.False(t, invisible[0].AccessedAt.IsZero())

	visible.Text = "chapter two"
	require.NoError(t, db.SaveBookmark(ctx, visible))
	all, err = db.LoadAllVisibleBookmarks(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chapter two", all[0].Text)

	require.NoError(t, db.DeleteBookmark(ctx, visible.ID))
	all, err = db.LoadAllVisibleBookmarks(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	pos, err := db.GetStoredPosition(ctx, book.ID)
	require.NoError(t, err)
	assert.Nil(t, pos)

	require.NoError(t, db.StorePosition(ctx, book.ID, Position{Paragraph: 4, Element: 2, Char: 1}))
	pos, err = db.GetStoredPosition(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, &Position{Paragraph: 4, Element: 2, Char: 1}, pos)

	require.NoError(t, db.AddVisitedHyperlink(ctx, book.ID, "note1"))
	require.NoError(t, db.AddVisitedHyperlink(ctx, book.ID, "note1"))
	links, err := db.LoadVisitedHyperlinks(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"note1"}, links)
}

func TestMetadataAndLastBuild(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetMetadata(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	last, err := db.GetLastBuild(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.SetLastBuild(ctx, now))
	last, err = db.GetLastBuild(ctx)
	require.NoError(t, err)
	assert.True(t, now.Equal(last))
}

func TestListTags(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveBook(ctx, sampleBook(1, "/books/a.fb2", "Alpha")))

	tags, err := db.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Classics", "Fiction/Science Fiction"}, tags)
}

func TestSaveBooksRollsBackOnError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := NewWithDB(sqlDB)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO books").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	rec := &BookRecord{FileID: 1, FileKey: "/books/a.fb2", Title: "A"}
	err = db.SaveBooks(context.Background(), []*BookRecord{rec})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, rec.ID, "id must not be assigned when the transaction fails")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetExistingFlagRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := NewWithDB(sqlDB)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("UPDATE books SET exist")
	prep.ExpectExec().WithArgs(0, int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(0, int64(2)).WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err = db.SetExistingFlag(context.Background(), []int64{1, 2}, false)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRecentBookIDsCommit(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := NewWithDB(sqlDB)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM recent_books").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO recent_books").WithArgs(0, int64(8)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO recent_books").WithArgs(1, int64(4)).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, db.SaveRecentBookIDs(context.Background(), []int64{8, 4}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
