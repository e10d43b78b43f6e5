package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// getOrCreateAuthor returns the id of the author row, inserting it when missing.
func getOrCreateAuthor(ctx context.Context, tx *sql.Tx, a AuthorRecord) (int64, error) {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return 0, errors.New("author name cannot be empty")
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO authors (name, sort_key) VALUES (?, ?) ON CONFLICT(name, sort_key) DO NOTHING",
		name, a.SortKey,
	); err != nil {
		return 0, fmt.Errorf("failed to create author: %w", err)
	}

	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM authors WHERE name = ? AND sort_key = ?",
		name, a.SortKey,
	).Scan(&id)
	return id, err
}

// getOrCreateTag returns the id of the tag with the given slash separated path.
func getOrCreateTag(ctx context.Context, tx *sql.Tx, path string) (int64, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("tag name cannot be empty")
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO tags (path) VALUES (?) ON CONFLICT(path) DO NOTHING",
		path,
	); err != nil {
		return 0, fmt.Errorf("failed to create tag: %w", err)
	}

	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE path = ?", path).Scan(&id)
	return id, err
}

// getOrCreateSeries returns the id of the named series.
func getOrCreateSeries(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO series (name) VALUES (?) ON CONFLICT(name) DO NOTHING",
		name,
	); err != nil {
		return 0, fmt.Errorf("failed to create series: %w", err)
	}

	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM series WHERE name = ?", name).Scan(&id)
	return id, err
}

// ListTags returns every tag path referenced by an existing book, sorted.
func (d *Database) ListTags(ctx context.Context) ([]string, error) {
	done := observeQuery("list_tags")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT t.path
		FROM tags t
		INNER JOIN book_tags bt ON bt.tag_id = t.id
		INNER JOIN books b ON b.id = bt.book_id
		WHERE b.exist = 1
		ORDER BY t.path COLLATE NOCASE
	`)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			done(err)
			return nil, err
		}
		tags = append(tags, path)
	}
	err = rows.Err()
	done(err)
	return tags, err
}
