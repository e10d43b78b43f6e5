// Package tree implements the categorized index over the book set.
//
// The root holds a fixed sequence of categories (favorites, recent, by
// author, by title, by series, by tag, file tree, search results). Favorites,
// recent and search results keep insertion order; every other level is sorted
// by name, with books inside a series ordered by series index. A book leaf
// never appears twice under the same parent.
//
// Nodes carry no locking. The library serialises every mutation and hands
// out [View] snapshots to readers.
package tree
