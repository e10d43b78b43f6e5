// Package bookfile models the places a book can live: a file on disk, an
// entry inside a ZIP archive on disk, or a file in an embedded resource
// filesystem.
//
// Every File has a stable string Key used as its identity across the
// catalog. Physical files are keyed by absolute path, archive entries by
// "<archive path>!/<entry name>" and resources by "resource:<name>".
package bookfile
