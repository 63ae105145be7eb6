package inherit

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/hupe1980/affinity/tag"
)

// ErrMalformedKey is returned when a persisted cell key cannot be parsed.
var ErrMalformedKey = errors.New("inherit: malformed cell key")

// CellKey identifies a cell by its row and column tags.
type CellKey struct {
	Row    tag.Tag
	Column tag.Tag
}

// Cell is shorthand for CellKey{row, column}.
func Cell(row, column tag.Tag) CellKey {
	return CellKey{Row: row, Column: column}
}

// IsZero reports whether k names no cell.
func (k CellKey) IsZero() bool { return k.Row == tag.None && k.Column == tag.None }

// String returns the canonical "row|column" form used on disk.
func (k CellKey) String() string {
	return string(k.Row) + tag.CellSeparator + string(k.Column)
}

// ParseCellKey parses the canonical "row|column" form.
func ParseCellKey(s string) (CellKey, error) {
	row, col, ok := strings.Cut(s, tag.CellSeparator)
	if !ok || strings.Contains(col, tag.CellSeparator) {
		return CellKey{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	return CellKey{Row: tag.Tag(row), Column: tag.Tag(col)}, nil
}

// Link is the stored relation of a cell. A zero Parent marks the cell
// independent.
type Link struct {
	Parent CellKey
}

// Inherits reports whether the link points at a source cell.
func (l Link) Inherits() bool { return !l.Parent.IsZero() }

// Links maps cells to their links. A cell without an entry has not been
// computed yet, which is distinct from being independent.
type Links map[CellKey]Link

// Clone returns a copy of l.
func (l Links) Clone() Links {
	if l == nil {
		return Links{}
	}
	return maps.Clone(l)
}

// Parent returns the source of cell, if it inherits.
func (l Links) Parent(cell CellKey) (CellKey, bool) {
	link, ok := l[cell]
	if !ok || !link.Inherits() {
		return CellKey{}, false
	}
	return link.Parent, true
}

// DropRow removes the entries of every cell on row.
func (l Links) DropRow(row tag.Tag) {
	maps.DeleteFunc(l, func(k CellKey, _ Link) bool { return k.Row == row })
}

// DropColumn removes the entries of every cell on column.
func (l Links) DropColumn(column tag.Tag) {
	maps.DeleteFunc(l, func(k CellKey, _ Link) bool { return k.Column == column })
}
