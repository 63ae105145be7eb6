// Package inherit maintains the inheritance links between the cells of one
// schema.
//
// Every cell either holds authored data (independent) or inherits the data of
// an ancestor cell, one row up or one column up the tag hierarchy. Chains are
// kept at most one hop deep: a cell always links to the terminal source of its
// ancestor, never to another inheritor. Inherited data is materialized by
// copying the source record into the inheritor when links change, so queries
// never consult this package.
//
// Link rewrites run in two passes: the affected cells are collected first,
// then relinked and refreshed.
package inherit
