package database

import "time"

// FileInfo is a persisted content identity: the last observed size and
// modification time of a file, keyed by the file's stable key.
type FileInfo struct {
	ID       int64  `json:"id"`
	Key      string `json:"key"`
	ParentID int64  `json:"parentId,omitempty"`
	Size     int64  `json:"size"`
	ModTime  int64  `json:"modTime"` // unix nanoseconds
}

// AuthorRecord is one author row of a book, in book order.
type AuthorRecord struct {
	Name    string `json:"name"`
	SortKey string `json:"sortKey"`
}

// SeriesRecord is the series membership of a book.
type SeriesRecord struct {
	Name  string  `json:"name"`
	Index float64 `json:"index"`
}

// BookRecord is the persisted form of a book and its ordered relations.
type BookRecord struct {
	ID       int64          `json:"id"`
	FileID   int64          `json:"fileId"`
	FileKey  string         `json:"fileKey"`
	Title    string         `json:"title"`
	Encoding string         `json:"encoding,omitempty"`
	Language string         `json:"language,omitempty"`
	Authors  []AuthorRecord `json:"authors,omitempty"`
	Tags     []string       `json:"tags,omitempty"` // slash separated tag paths
	Series   *SeriesRecord  `json:"series,omitempty"`
	Exists   bool           `json:"exists"` // only honoured when inserting
}

// Bookmark is a saved reading location inside a book.
type Bookmark struct {
	ID         int64     `json:"id"`
	BookID     int64     `json:"bookId"`
	BookTitle  string    `json:"bookTitle"`
	Text       string    `json:"text"`
	ModelID    string    `json:"modelId,omitempty"`
	Paragraph  int       `json:"paragraph"`
	Element    int       `json:"element"`
	Char       int       `json:"char"`
	Visible    bool      `json:"visible"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt,omitempty"`
	AccessedAt time.Time `json:"accessedAt,omitempty"`
}

// LatestTime returns the most recent of the bookmark's timestamps.
func (b *Bookmark) LatestTime() time.Time {
	latest := b.CreatedAt
	if b.ModifiedAt.After(latest) {
		latest = b.ModifiedAt
	}
	if b.AccessedAt.After(latest) {
		latest = b.AccessedAt
	}
	return latest
}

// Position is a stored reading position.
type Position struct {
	Paragraph int `json:"paragraph"`
	Element   int `json:"element"`
	Char      int `json:"char"`
}
