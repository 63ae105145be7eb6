// Package page implements the per-schema grid of a table.
//
// A Page is an ordered list of rows, each an ordered list of per-column
// Handles into a set of record pools. Deleted rows become empty markers and
// keep their index; deleted columns are retired, every row keeps an invalid
// Handle at that position and the index is never reused. Retired columns and
// deleted rows are tracked in roaring bitmaps.
//
// In fixed mode a page is sized exactly rows×cols at construction and running
// out of slots panics. In dynamic mode the page scans its pools for a free
// slot and otherwise maps one new full pool.
package page
