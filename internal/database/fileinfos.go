package database

import (
	"context"
	"database/sql"
	"fmt"
)

// LoadFileInfos returns every persisted content identity.
func (d *Database) LoadFileInfos(ctx context.Context) ([]FileInfo, error) {
	done := observeQuery("load_file_infos")

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, "SELECT id, key, parent_id, size, mod_time FROM files ORDER BY id")
	if err != nil {
		done(err)
		return nil, fmt.Errorf("failed to load file infos: %w", err)
	}
	defer rows.Close()

	var infos []FileInfo
	for rows.Next() {
		var fi FileInfo
		var parent sql.NullInt64
		if err := rows.Scan(&fi.ID, &fi.Key, &parent, &fi.Size, &fi.ModTime); err != nil {
			done(err)
			return nil, err
		}
		fi.ParentID = parent.Int64
		infos = append(infos, fi)
	}
	err = rows.Err()
	done(err)
	return infos, err
}

// SaveFileInfos applies deletions and upserts of content identities in one transaction.
func (d *Database) SaveFileInfos(ctx context.Context, upserts []FileInfo, deletes []int64) error {
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	done := observeQuery("save_file_infos")

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range deletes {
			if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id); err != nil {
				return fmt.Errorf("delete file info %d: %w", id, err)
			}
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO files (id, key, parent_id, size, mod_time)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				key = excluded.key,
				parent_id = excluded.parent_id,
				size = excluded.size,
				mod_time = excluded.mod_time
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, fi := range upserts {
			parent := sql.NullInt64{Int64: fi.ParentID, Valid: fi.ParentID > 0}
			if _, err := stmt.ExecContext(ctx, fi.ID, fi.Key, parent, fi.Size, fi.ModTime); err != nil {
				return fmt.Errorf("save file info %s: %w", fi.Key, err)
			}
		}
		return nil
	})
	done(err)
	return err
}
