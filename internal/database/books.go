package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const bookColumns = `b.id, b.file_id, b.file_key, b.title, b.encoding, b.language, b.exist`

// LoadBooks returns every book whose existing flag matches existing, with
// authors, tags and series attached.
func (d *Database) LoadBooks(ctx context.Context, existing bool) ([]*BookRecord, error) {
	done := observeQuery("load_books")

	d.mu.RLock()
	defer d.mu.RUnlock()

	books, err := d.queryBooks(ctx, "WHERE b.exist = ?", boolToInt(existing))
	done(err)
	return books, err
}

// LoadBook returns the book with the given id or ErrNotFound.
func (d *Database) LoadBook(ctx context.Context, id int64) (*BookRecord, error) {
	return d.loadOne(ctx, "load_book", "WHERE b.id = ?", id)
}

// LoadBookByFileID returns the book bound to the given content identity or ErrNotFound.
func (d *Database) LoadBookByFileID(ctx context.Context, fileID int64) (*BookRecord, error) {
	return d.loadOne(ctx, "load_book_by_file", "WHERE b.file_id = ?", fileID)
}

func (d *Database) loadOne(ctx context.Context, op, where string, arg int64) (*BookRecord, error) {
	done := observeQuery(op)

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	books, err := d.queryBooks(ctx, where, arg)
	if err == nil && len(books) == 0 {
		err = ErrNotFound
	}
	done(err)
	if err != nil {
		return nil, err
	}
	return books[0], nil
}

// queryBooks loads book rows matching where plus their ordered relations.
// Caller must hold at least a read lock.
func (d *Database) queryBooks(ctx context.Context, where string, args ...any) ([]*BookRecord, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT "+bookColumns+" FROM books b "+where+" ORDER BY b.id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []*BookRecord
	byID := make(map[int64]*BookRecord)
	for rows.Next() {
		var b BookRecord
		var exist int
		if err := rows.Scan(&b.ID, &b.FileID, &b.FileKey, &b.Title, &b.Encoding, &b.Language, &exist); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		b.Exists = exist != 0
		books = append(books, &b)
		byID[b.ID] = &b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}

	subset := "(SELECT b.id FROM books b " + where + ")"

	if err := scanRelation(ctx, d.db, `
		SELECT ba.book_id, a.name, a.sort_key
		FROM book_authors ba JOIN authors a ON a.id = ba.author_id
		WHERE ba.book_id IN `+subset+`
		ORDER BY ba.book_id, ba.position`, args,
		func(rows *sql.Rows) error {
			var id int64
			var a AuthorRecord
			if err := rows.Scan(&id, &a.Name, &a.SortKey); err != nil {
				return err
			}
			if b := byID[id]; b != nil {
				b.Authors = append(b.Authors, a)
			}
			return nil
		}); err != nil {
		return nil, fmt.Errorf("failed to load authors: %w", err)
	}

	if err := scanRelation(ctx, d.db, `
		SELECT bt.book_id, t.path
		FROM book_tags bt JOIN tags t ON t.id = bt.tag_id
		WHERE bt.book_id IN `+subset+`
		ORDER BY bt.book_id, bt.position`, args,
		func(rows *sql.Rows) error {
			var id int64
			var path string
			if err := rows.Scan(&id, &path); err != nil {
				return err
			}
			if b := byID[id]; b != nil {
				b.Tags = append(b.Tags, path)
			}
			return nil
		}); err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}

	if err := scanRelation(ctx, d.db, `
		SELECT bs.book_id, s.name, bs.series_index
		FROM book_series bs JOIN series s ON s.id = bs.series_id
		WHERE bs.book_id IN `+subset, args,
		func(rows *sql.Rows) error {
			var id int64
			var s SeriesRecord
			if err := rows.Scan(&id, &s.Name, &s.Index); err != nil {
				return err
			}
			if b := byID[id]; b != nil {
				b.Series = &s
			}
			return nil
		}); err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}

	return books, nil
}

func scanRelation(ctx context.Context, db *sql.DB, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SaveBook upserts a single book with its relations in one transaction.
// A new row takes its existing flag from Exists; updates never change the
// flag, which only SetExistingFlag does.
func (d *Database) SaveBook(ctx context.Context, book *BookRecord) error {
	return d.SaveBooks(ctx, []*BookRecord{book})
}

// SaveBooks upserts all books in a single transaction. Either every row
// becomes visible or none does. New books get their ids assigned only
// after the commit succeeds.
func (d *Database) SaveBooks(ctx context.Context, books []*BookRecord) error {
	if len(books) == 0 {
		return nil
	}

	done := observeQuery("save_books")

	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]int64, len(books))
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		for i, b := range books {
			id, err := saveBookTx(ctx, tx, b)
			if err != nil {
				return fmt.Errorf("save book %s: %w", b.FileKey, err)
			}
			ids[i] = id
		}
		return nil
	})
	done(err)
	if err != nil {
		return err
	}

	for i, b := range books {
		b.ID = ids[i]
	}
	return nil
}

func saveBookTx(ctx context.Context, tx *sql.Tx, b *BookRecord) (int64, error) {
	id := b.ID
	if id > 0 {
		res, err := tx.ExecContext(ctx, `
			UPDATE books SET file_id = ?, file_key = ?, title = ?, encoding = ?, language = ?,
				updated_at = strftime('%s', 'now')
			WHERE id = ?
		`, b.FileID, b.FileKey, b.Title, b.Encoding, b.Language, id)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			id = 0
		}
	}

	if id <= 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO books (file_id, file_key, title, encoding, language, exist)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(file_id) DO UPDATE SET
				file_key = excluded.file_key,
				title = excluded.title,
				encoding = excluded.encoding,
				language = excluded.language,
				updated_at = strftime('%s', 'now')
		`, b.FileID, b.FileKey, b.Title, b.Encoding, b.Language, boolToInt(b.Exists))
		if err != nil {
			return 0, err
		}
		if err := tx.QueryRowContext(ctx, "SELECT id FROM books WHERE file_id = ?", b.FileID).Scan(&id); err != nil {
			return 0, err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM book_authors WHERE book_id = ?", id); err != nil {
		return 0, err
	}
	for i, a := range b.Authors {
		authorID, err := getOrCreateAuthor(ctx, tx, a)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO book_authors (book_id, author_id, position) VALUES (?, ?, ?)",
			id, authorID, i,
		); err != nil {
			return 0, err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM book_tags WHERE book_id = ?", id); err != nil {
		return 0, err
	}
	for i, path := range b.Tags {
		tagID, err := getOrCreateTag(ctx, tx, path)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO book_tags (book_id, tag_id, position) VALUES (?, ?, ?)",
			id, tagID, i,
		); err != nil {
			return 0, err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM book_series WHERE book_id = ?", id); err != nil {
		return 0, err
	}
	if b.Series != nil && b.Series.Name != "" {
		seriesID, err := getOrCreateSeries(ctx, tx, b.Series.Name)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO book_series (book_id, series_id, series_index) VALUES (?, ?, ?)",
			id, seriesID, b.Series.Index,
		); err != nil {
			return 0, err
		}
	}

	return id, nil
}

// SetExistingFlag updates the existing flag of all given books in one transaction.
func (d *Database) SetExistingFlag(ctx context.Context, ids []int64, exists bool) error {
	if len(ids) == 0 {
		return nil
	}

	done := observeQuery("set_existing_flag")

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "UPDATE books SET exist = ? WHERE id = ?")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, boolToInt(exists), id); err != nil {
				return fmt.Errorf("update book %d: %w", id, err)
			}
		}
		return nil
	})
	done(err)
	return err
}

// CountBooks returns the number of books with the given existing flag.
func (d *Database) CountBooks(ctx context.Context, existing bool) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books WHERE exist = ?", boolToInt(existing)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
