package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const bookmarkColumns = `bm.id, bm.book_id, b.title, bm.text, bm.model_id, bm.paragraph, bm.element, bm.char,
	bm.visible, bm.created_at, bm.modified_at, bm.accessed_at`

// SaveBookmark inserts a new bookmark or updates an existing one.
func (d *Database) SaveBookmark(ctx context.Context, bm *Bookmark) error {
	done := observeQuery("save_bookmark")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if bm.CreatedAt.IsZero() {
		bm.CreatedAt = time.Now()
	}

	var err error
	if bm.ID > 0 {
		_, err = d.db.ExecContext(ctx, `
			UPDATE bookmarks SET book_id = ?, text = ?, model_id = ?, paragraph = ?, element = ?, char = ?,
				visible = ?, modified_at = ?, accessed_at = ?
			WHERE id = ?
		`, bm.BookID, bm.Text, nullString(bm.ModelID), bm.Paragraph, bm.Element, bm.Char,
			boolToInt(bm.Visible), nullTime(bm.ModifiedAt), nullTime(bm.AccessedAt), bm.ID)
	} else {
		var res sql.Result
		res, err = d.db.ExecContext(ctx, `
			INSERT INTO bookmarks (book_id, text, model_id, paragraph, element, char, visible, created_at, modified_at, accessed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, bm.BookID, bm.Text, nullString(bm.ModelID), bm.Paragraph, bm.Element, bm.Char,
			boolToInt(bm.Visible), bm.CreatedAt.UnixNano(), nullTime(bm.ModifiedAt), nullTime(bm.AccessedAt))
		if err == nil {
			bm.ID, err = res.LastInsertId()
		}
	}
	done(err)
	return err
}

// DeleteBookmark removes a bookmark by id.
func (d *Database) DeleteBookmark(ctx context.Context, id int64) error {
	done := observeQuery("delete_bookmark")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE id = ?", id)
	done(err)
	return err
}

// LoadBookmarks returns the bookmarks of a book with the given visibility.
func (d *Database) LoadBookmarks(ctx context.Context, bookID int64, visible bool) ([]Bookmark, error) {
	return d.queryBookmarks(ctx, "load_bookmarks",
		"WHERE bm.book_id = ? AND bm.visible = ?", bookID, boolToInt(visible))
}

// LoadAllVisibleBookmarks returns the visible bookmarks of every book.
func (d *Database) LoadAllVisibleBookmarks(ctx context.Context) ([]Bookmark, error) {
	return d.queryBookmarks(ctx, "load_all_bookmarks", "WHERE bm.visible = 1")
}

func (d *Database) queryBookmarks(ctx context.Context, op, where string, args ...any) ([]Bookmark, error) {
	done := observeQuery(op)

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT "+bookmarkColumns+`
		FROM bookmarks bm INNER JOIN books b ON b.id = bm.book_id `+where+` ORDER BY bm.id`, args...)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	var out []Bookmark
	for rows.Next() {
		var bm Bookmark
		var modelID sql.NullString
		var visible int
		var created int64
		var modified, accessed sql.NullInt64
		if err := rows.Scan(&bm.ID, &bm.BookID, &bm.BookTitle, &bm.Text, &modelID,
			&bm.Paragraph, &bm.Element, &bm.Char, &visible, &created, &modified, &accessed); err != nil {
			done(err)
			return nil, err
		}
		bm.ModelID = modelID.String
		bm.Visible = visible != 0
		bm.CreatedAt = time.Unix(0, created)
		if modified.Valid {
			bm.ModifiedAt = time.Unix(0, modified.Int64)
		}
		if accessed.Valid {
			bm.AccessedAt = time.Unix(0, accessed.Int64)
		}
		out = append(out, bm)
	}
	err = rows.Err()
	done(err)
	return out, err
}

// LoadVisitedHyperlinks returns the ids of hyperlinks visited in a book.
func (d *Database) LoadVisitedHyperlinks(ctx context.Context, bookID int64) ([]string, error) {
	done := observeQuery("load_visited_hyperlinks")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT hyperlink_id FROM visited_hyperlinks WHERE book_id = ?", bookID)
	if err != nil {
		done(err)
		return nil, err
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			done(err)
			return nil, err
		}
		links = append(links, link)
	}
	err = rows.Err()
	done(err)
	return links, err
}

// AddVisitedHyperlink records a visited hyperlink for a book.
func (d *Database) AddVisitedHyperlink(ctx context.Context, bookID int64, link string) error {
	done := observeQuery("add_visited_hyperlink")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO visited_hyperlinks (book_id, hyperlink_id) VALUES (?, ?)",
		bookID, link,
	)
	done(err)
	return err
}

// GetStoredPosition returns the saved reading position of a book, or nil if none.
func (d *Database) GetStoredPosition(ctx context.Context, bookID int64) (*Position, error) {
	done := observeQuery("get_position")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p Position
	err := d.db.QueryRowContext(ctx,
		"SELECT paragraph, element, char FROM positions WHERE book_id = ?", bookID,
	).Scan(&p.Paragraph, &p.Element, &p.Char)
	if errors.Is(err, sql.ErrNoRows) {
		done(nil)
		return nil, nil
	}
	done(err)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// StorePosition saves the reading position of a book.
func (d *Database) StorePosition(ctx context.Context, bookID int64, p Position) error {
	done := observeQuery("store_position")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO positions (book_id, paragraph, element, char, updated_at)
		VALUES (?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(book_id) DO UPDATE SET
			paragraph = excluded.paragraph,
			element = excluded.element,
			char = excluded.char,
			updated_at = excluded.updated_at
	`, bookID, p.Paragraph, p.Element, p.Char)
	done(err)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
