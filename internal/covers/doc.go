// Package covers serves book cover thumbnails.
//
// A [Cache] reads the raw cover through a [formats.CoverReader], decodes it
// (JPEG, PNG, GIF, WebP or BMP), fits it into a square box with Lanczos
// resampling and stores the JPEG result in a bounded LRU. Entries are keyed
// by file key and modification time, so a rewritten file gets a new
// thumbnail without explicit invalidation. Books without a cover are cached
// as negative entries.
package covers
