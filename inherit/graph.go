package inherit

import (
	"log/slog"
	"slices"

	"github.com/hupe1980/affinity/tag"
)

// Stream selects which axis a new cell prefers to inherit along.
type Stream int

const (
	// RowStream inherits from the parent row first, then the parent column.
	RowStream Stream = iota
	// ColumnStream inherits from the parent column first, then the parent row.
	ColumnStream
)

// Data gives the graph access to the records behind cells.
type Data interface {
	// Identical reports whether two cells hold equal records.
	Identical(a, b CellKey) bool
	// Copy overwrites the record of dst with the record of src.
	Copy(dst, src CellKey)
}

// Graph runs the inheritance algorithms over one schema's links.
// It is not safe for concurrent use.
type Graph struct {
	rows   *tag.Tree
	cols   *tag.Tree
	links  Links
	data   Data
	logger *slog.Logger
}

// New binds the row and column trees, a link map and record access. Link
// changes are written through to links.
func New(rows, cols *tag.Tree, links Links, data Data, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Graph{rows: rows, cols: cols, links: links, data: data, logger: logger}
}

// Links returns the underlying link map.
func (g *Graph) Links() Links { return g.links }

// Inherits reports whether cell currently inherits.
func (g *Graph) Inherits(cell CellKey) bool {
	_, ok := g.links.Parent(cell)
	return ok
}

// Source returns the cell that cell inherits from.
func (g *Graph) Source(cell CellKey) (CellKey, bool) {
	return g.links.Parent(cell)
}

// Link makes child inherit from parent.
func (g *Graph) Link(child, parent CellKey) {
	g.links[child] = Link{Parent: parent}
}

// Unlink marks cell independent.
func (g *Graph) Unlink(cell CellKey) {
	g.links[cell] = Link{}
}

// Assign links cell to the cell one step up its preferred stream, falling
// back to the other axis, or marks it independent when neither axis has a
// parent. When that parent itself inherits, cell links to the parent's source.
// It reports false if cell is not part of both trees.
func (g *Graph) Assign(cell CellKey, stream Stream) bool {
	rowID, ok := g.rows.Find(cell.Row)
	if !ok {
		return false
	}
	colID, ok := g.cols.Find(cell.Column)
	if !ok {
		return false
	}

	rowUp := func() CellKey { return Cell(g.rows.Tag(g.rows.Parent(rowID)), cell.Column) }
	colUp := func() CellKey { return Cell(cell.Row, g.cols.Tag(g.cols.Parent(colID))) }

	var parent CellKey
	switch {
	case stream == ColumnStream && g.cols.HasValidParent(colID):
		parent = colUp()
	case stream == ColumnStream && g.rows.HasValidParent(rowID):
		parent = rowUp()
	case stream == RowStream && g.rows.HasValidParent(rowID):
		parent = rowUp()
	case stream == RowStream && g.cols.HasValidParent(colID):
		parent = colUp()
	default:
		g.Unlink(cell)
		return true
	}

	if src, ok := g.links.Parent(parent); ok {
		parent = src
	}
	g.Link(cell, parent)
	return true
}

// Gather collects the cells that inherit through cell: rows below it in its
// column that do not terminate on their own row, and columns to its right
// that inherit from cell or from outside their own column, together with the
// rows below those. With force every descendant cell is collected. Cells that
// inherit themselves have no inheritors.
func (g *Graph) Gather(cell CellKey, force bool) []CellKey {
	if g.Inherits(cell) {
		return nil
	}
	rowID, ok := g.rows.Find(cell.Row)
	if !ok {
		return nil
	}
	colID, ok := g.cols.Find(cell.Column)
	if !ok {
		return nil
	}

	var out []CellKey
	g.gatherColumnDown(rowID, cell.Column, force, &out)

	g.cols.WalkChildren(colID, func(c tag.NodeID) bool {
		col := g.cols.Tag(c)
		k := Cell(cell.Row, col)
		src, inherits := g.links.Parent(k)
		if force || (inherits && (src == cell || src.Column != col)) {
			out = append(out, k)
			g.gatherColumnDown(rowID, col, force, &out)
			return true
		}
		return false
	})
	return out
}

func (g *Graph) gatherColumnDown(rowID tag.NodeID, col tag.Tag, force bool, out *[]CellKey) {
	g.rows.WalkChildren(rowID, func(r tag.NodeID) bool {
		row := g.rows.Tag(r)
		k := Cell(row, col)
		src, inherits := g.links.Parent(k)
		if force || (inherits && src.Row != row) {
			*out = append(*out, k)
			return true
		}
		return false
	})
}

// Propagate relinks every cell gathered from cell to it and copies its data
// into them. It returns the relinked cells.
func (g *Graph) Propagate(cell CellKey, force bool) []CellKey {
	cells := g.Gather(cell, force)
	for _, c := range cells {
		g.Link(c, cell)
	}
	g.Refresh(append(slices.Clip(cells), cell)...)
	return cells
}

// Refresh copies each inheriting cell's source data into it, skipping cells
// that already match. It returns how many records were written.
func (g *Graph) Refresh(cells ...CellKey) int {
	n := 0
	for _, c := range cells {
		src, ok := g.links.Parent(c)
		if !ok || g.data.Identical(src, c) {
			continue
		}
		g.data.Copy(c, src)
		n++
	}
	return n
}

// MakeIndependent breaks cell's link and hands it the cells that inherited
// through it. It returns the relinked cells, or nil if cell was independent.
func (g *Graph) MakeIndependent(cell CellKey) []CellKey {
	if !g.Inherits(cell) {
		return nil
	}
	g.Unlink(cell)
	return g.Propagate(cell, false)
}

// ValueChanged reacts to an edit of cell's data. An inheriting cell becomes
// independent; an independent cell pushes its new data to its inheritors.
// It returns the cells whose data was refreshed.
func (g *Graph) ValueChanged(cell CellKey) []CellKey {
	if g.Inherits(cell) {
		return g.MakeIndependent(cell)
	}
	cells := g.Gather(cell, false)
	g.Refresh(cells...)
	return cells
}

// Acquire turns an independent cell back into an inheritor along stream. The
// cells that inherited through it follow it to its new source. It returns the
// affected cells, or nil if cell already inherits.
func (g *Graph) Acquire(cell CellKey, stream Stream) []CellKey {
	if g.Inherits(cell) {
		return nil
	}
	cells := g.Gather(cell, false)
	if !g.Assign(cell, stream) {
		return nil
	}

	if src, ok := g.links.Parent(cell); ok {
		for _, c := range cells {
			g.Link(c, src)
		}
	}
	g.Refresh(append(slices.Clip(cells), cell)...)
	return cells
}

// Reset re-roots every sub-table: each top-level row × top-level column cell
// becomes independent and force-propagates to every cell below and right of
// it. Authored data anywhere else is overwritten.
func (g *Graph) Reset() {
	for _, r := range g.rows.Children(tag.Root) {
		for _, c := range g.cols.Children(tag.Root) {
			root := Cell(g.rows.Tag(r), g.cols.Tag(c))
			g.Unlink(root)
			g.Propagate(root, true)
		}
	}
}

// Restore computes links for every cell of the trees. Stored links are kept
// when their source still exists; missing or dangling ones are reassigned
// along the row stream. Cells are visited parents first so reassigned chains
// stay one hop deep. Inherited data is refreshed afterwards. It returns the
// number of reassigned cells.
func (g *Graph) Restore() int {
	rows := g.rows.Preorder()
	cols := g.cols.Preorder()

	cells := make([]CellKey, 0, len(rows)*len(cols))
	for _, r := range rows {
		for _, c := range cols {
			cells = append(cells, Cell(g.rows.Tag(r), g.cols.Tag(c)))
		}
	}
	return g.RestoreCells(RowStream, cells...)
}

// RestoreCells is Restore limited to cells, reassigning along stream. Cells
// must be ordered parents first.
func (g *Graph) RestoreCells(stream Stream, cells ...CellKey) int {
	reassigned := 0
	for _, cell := range cells {
		if g.restoreOne(cell, stream) {
			reassigned++
		}
	}
	g.Refresh(cells...)
	return reassigned
}

func (g *Graph) restoreOne(cell CellKey, stream Stream) bool {
	if link, ok := g.links[cell]; ok {
		if !link.Inherits() {
			return false
		}
		_, rowOK := g.rows.Find(link.Parent.Row)
		_, colOK := g.cols.Find(link.Parent.Column)
		if rowOK && colOK {
			return false
		}
		g.logger.Warn("stored inheritance parent not found; reassigning",
			slog.String("cell", cell.String()),
			slog.String("parent", link.Parent.String()))
	}
	g.Assign(cell, stream)
	return true
}
