// Package book holds the in-memory representation of one catalog item.
//
// A [Book] owns its metadata and tracks whether it differs from what was last
// persisted. Setters mark the book dirty only when a value actually changes,
// and nothing is written until [Book.Save] is called. Books are identified by
// their file key, so two instances for the same file are equal even before
// either has a catalog id.
package book
