package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LoadFavoriteIDs returns the ids of all favorite books, oldest first.
func (d *Database) LoadFavoriteIDs(ctx context.Context) ([]int64, error) {
	return d.loadIDs(ctx, "load_favorites", "SELECT book_id FROM favorites ORDER BY created_at, book_id")
}

// AddToFavorites adds a book to favorites. Returns false if it already was one.
func (d *Database) AddToFavorites(ctx context.Context, bookID int64) (bool, error) {
	done := observeQuery("add_favorite")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO favorites (book_id, created_at)
		VALUES (?, ?)
		ON CONFLICT(book_id) DO NOTHING
	`, bookID, time.Now().UnixNano())
	done(err)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RemoveFromFavorites removes a book from favorites. Returns false if it was not one.
func (d *Database) RemoveFromFavorites(ctx context.Context, bookID int64) (bool, error) {
	done := observeQuery("remove_favorite")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, "DELETE FROM favorites WHERE book_id = ?", bookID)
	done(err)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// LoadRecentBookIDs returns the recent list, most recent first.
func (d *Database) LoadRecentBookIDs(ctx context.Context) ([]int64, error) {
	return d.loadIDs(ctx, "load_recent", "SELECT book_id FROM recent_books ORDER BY position")
}

// SaveRecentBookIDs replaces the recent list in one transaction.
func (d *Database) SaveRecentBookIDs(ctx context.Context, ids []int64) error {
	done := observeQuery("save_recent")

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM recent_books"); err != nil {
			return err
		}
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO recent_books (position, book_id) VALUES (?, ?)", i, id,
			); err != nil {
				return fmt.Errorf("insert recent book %d: %w", id, err)
			}
		}
		return nil
	})
	done(err)
	return err
}

func (d *Database) loadIDs(ctx context.Context, op, query string, args ...any) ([]int64, error) {
	done := observeQuery(op)

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		done(err)
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			done(err)
			return nil, err
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	done(err)
	return ids, err
}
