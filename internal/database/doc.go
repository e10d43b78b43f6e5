// Package database provides SQLite catalog storage for the book library.
//
// It handles storage and retrieval of:
//   - Book metadata rows with ordered authors, tags and series membership
//   - Content identities (file key, size, modification time)
//   - The ordered recent list and the favorites set
//   - Bookmarks, visited hyperlinks and stored reading positions
//
// Multi-row writes (saving a batch of books, replacing the recent list,
// flipping existing flags, flushing content identities) each run in a single
// transaction. The database uses WAL mode for improved concurrent read
// performance and includes automatic schema initialization.
package database
