// Package handlers provides the HTTP API of the book library.
//
// It includes handlers for:
//   - Health checks, version and library statistics
//   - Browsing the index tree and expanding the file tree
//   - Book details, covers, removal, reload and reading positions
//   - Recent books, favorites and bookmarks
//   - Starting and polling searches
//   - Triggering rebuilds and streaming change events
//
// Routes are registered by [Handlers.Router]. Book ids are catalog ids;
// tree nodes are addressed by repeating the path query parameter with the
// node ids from the root, e.g. /api/tree?path=byTag&path=Fiction.
package handlers
