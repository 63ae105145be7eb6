package affinity

import (
	"fmt"
	"slices"

	"github.com/hupe1980/affinity/inherit"
	"github.com/hupe1980/affinity/schema"
	"github.com/hupe1980/affinity/tag"
)

// Editor is an editing session over a table. It keeps the tag trees of both
// axes, resolves inheritance by copying records at edit time, and assigns
// default colors to new tags.
//
// Edits made through the Editor keep inherited cells in sync; edits made
// directly on the Table do not. Call Sync after changing the table's tags
// behind the editor's back.
type Editor struct {
	table  *Table
	rows   *tag.Tree
	cols   *tag.Tree
	colors ColorSequence
}

// NewEditor opens an editing session on t. It colors uncolored tags and
// restores the inheritance links of every schema.
func NewEditor(t *Table) *Editor {
	e := &Editor{table: t}
	e.Sync()
	for _, axis := range []Axis{Rows, Columns} {
		e.assignColors(axis, t.SortedTags(axis))
	}
	e.Restore()
	return e
}

// Table returns the edited table.
func (e *Editor) Table() *Table { return e.table }

// Sync rebuilds the tag trees from the table.
func (e *Editor) Sync() {
	e.rows = tag.NewTree(e.table.SortedTags(Rows)...)
	e.cols = tag.NewTree(e.table.SortedTags(Columns)...)
}

type cellData struct {
	t      *Table
	schema string
}

func (d cellData) Identical(a, b inherit.CellKey) bool { return d.t.CellsIdentical(d.schema, a, b) }

func (d cellData) Copy(dst, src inherit.CellKey) { d.t.CopyCell(d.schema, dst, src) }

func (e *Editor) graph(name string) (*inherit.Graph, error) {
	links := e.table.Links(name)
	if links == nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotRegistered, name)
	}
	return inherit.New(e.rows, e.cols, links, cellData{t: e.table, schema: name},
		e.table.logger.WithSchema(name).Logger), nil
}

func (e *Editor) record(name string, cell inherit.CellKey) (schema.Schema, []byte, error) {
	s, ok := e.table.Schema(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrSchemaNotRegistered, name)
	}
	rec := e.table.CellData(name, cell)
	if rec == nil {
		return nil, nil, fmt.Errorf("%w: cell %s", ErrTagNotFound, cell)
	}
	return s, rec, nil
}

// SetCell writes one field of a cell. An inheriting cell becomes
// independent; an independent one pushes the new value to its inheritors.
func (e *Editor) SetCell(name string, cell inherit.CellKey, field string, value any) error {
	s, rec, err := e.record(name, cell)
	if err != nil {
		return err
	}
	f, ok := schema.FieldByName(s, field)
	if !ok {
		return fmt.Errorf("%w: %s.%s", schema.ErrUnknownField, name, field)
	}
	g, err := e.graph(name)
	if err != nil {
		return err
	}
	if err := f.Set(rec, value); err != nil {
		return err
	}
	g.ValueChanged(cell)
	e.table.markDirty()
	return nil
}

// MakeIndependent breaks the link of an inheriting cell. Cells that
// inherited through it inherit from it from now on. It returns those cells.
func (e *Editor) MakeIndependent(name string, cell inherit.CellKey) ([]inherit.CellKey, error) {
	g, err := e.graph(name)
	if err != nil {
		return nil, err
	}
	cells := g.MakeIndependent(cell)
	e.table.markDirty()
	return cells, nil
}

// AcquireInheritance turns an independent cell back into an inheritor along
// stream, overwriting its data with the source's. It returns the cells that
// followed it to the new source.
func (e *Editor) AcquireInheritance(name string, cell inherit.CellKey, stream inherit.Stream) ([]inherit.CellKey, error) {
	g, err := e.graph(name)
	if err != nil {
		return nil, err
	}
	cells := g.Acquire(cell, stream)
	e.table.markDirty()
	return cells, nil
}

// Source returns the cell that cell inherits from.
func (e *Editor) Source(name string, cell inherit.CellKey) (inherit.CellKey, bool) {
	return e.table.Links(name).Parent(cell)
}

// Paste copies the record of src into every target, or only the named
// fields of it. Targets stop inheriting before they are written, and push
// the pasted data to their own inheritors.
func (e *Editor) Paste(name string, src inherit.CellKey, targets []inherit.CellKey, fields ...string) error {
	s, from, err := e.record(name, src)
	if err != nil {
		return err
	}
	selected := make([]schema.Field, 0, len(fields))
	for _, fn := range fields {
		f, ok := schema.FieldByName(s, fn)
		if !ok {
			return fmt.Errorf("%w: %s.%s", schema.ErrUnknownField, name, fn)
		}
		selected = append(selected, f)
	}
	g, err := e.graph(name)
	if err != nil {
		return err
	}

	for _, target := range targets {
		if target == src {
			continue
		}
		_, to, err := e.record(name, target)
		if err != nil {
			return err
		}
		g.MakeIndependent(target)
		if len(selected) == 0 {
			s.Copy(to, from)
		} else {
			for _, f := range selected {
				f.CopyValue(to, from)
			}
		}
		g.ValueChanged(target)
	}
	e.table.markDirty()
	return nil
}

// ResetInheritance makes every top-level row × top-level column cell the
// independent source of its whole sub-table, overwriting authored data
// everywhere else.
func (e *Editor) ResetInheritance(name string) error {
	g, err := e.graph(name)
	if err != nil {
		return err
	}
	g.Reset()
	e.table.markDirty()
	return nil
}

// Restore computes missing or dangling links of every schema and re-copies
// inherited data. It returns the number of reassigned cells.
func (e *Editor) Restore() int {
	n := 0
	for _, name := range e.table.Schemas() {
		g, err := e.graph(name)
		if err != nil {
			continue
		}
		n += g.Restore()
	}
	return n
}

// AddRow adds tg, and any missing ancestors, to the table. New cells inherit
// along the row stream.
func (e *Editor) AddRow(tg tag.Tag) (bool, error) {
	return e.addTag(Rows, tg)
}

// AddColumn adds tg, and any missing ancestors, to the table. New cells
// inherit along the column stream.
func (e *Editor) AddColumn(tg tag.Tag) (bool, error) {
	return e.addTag(Columns, tg)
}

func (e *Editor) addTag(axis Axis, tg tag.Tag) (bool, error) {
	var missing []tag.Tag
	for cur := tg; cur != tag.None; cur = e.table.Taxonomy().Parent(cur) {
		if !e.table.Contains(axis, cur) {
			missing = append(missing, cur)
		}
	}

	added, err := e.table.addTag(axis, tg)
	if err != nil || !added {
		return added, err
	}

	// Ancestors first.
	slices.Reverse(missing)
	tree, stream := e.rows, inherit.RowStream
	if axis == Columns {
		tree, stream = e.cols, inherit.ColumnStream
	}
	for _, t := range missing {
		tree.Insert(t)
	}
	e.assignColors(axis, missing)

	cells := e.newCells(axis, missing)
	for _, name := range e.table.Schemas() {
		if g, err := e.graph(name); err == nil {
			g.RestoreCells(stream, cells...)
		}
	}
	return true, nil
}

// newCells lists the cells of new tags on axis, parents first.
func (e *Editor) newCells(axis Axis, tags []tag.Tag) []inherit.CellKey {
	other := e.cols
	if axis == Columns {
		other = e.rows
	}
	ids := other.Preorder()
	cells := make([]inherit.CellKey, 0, len(tags)*len(ids))
	for _, t := range tags {
		for _, id := range ids {
			if axis == Columns {
				cells = append(cells, inherit.Cell(other.Tag(id), t))
			} else {
				cells = append(cells, inherit.Cell(t, other.Tag(id)))
			}
		}
	}
	return cells
}

// DeleteRow deletes tg and every row below it. It returns the number of
// deleted tags.
func (e *Editor) DeleteRow(tg tag.Tag) int {
	return e.deleteSubtree(Rows, e.rows, tg)
}

// DeleteColumn deletes tg and every column below it. It returns the number
// of deleted tags.
func (e *Editor) DeleteColumn(tg tag.Tag) int {
	return e.deleteSubtree(Columns, e.cols, tg)
}

func (e *Editor) deleteSubtree(axis Axis, tree *tag.Tree, tg tag.Tag) int {
	id, ok := tree.Find(tg)
	if !ok {
		return 0
	}
	var tags []tag.Tag
	tree.Walk(id, func(n tag.NodeID) bool {
		tags = append(tags, tree.Tag(n))
		return true
	})
	tree.Remove(tg)

	n := 0
	for _, t := range tags {
		if e.table.deleteTag(axis, t) {
			n++
		}
	}
	return n
}

// Describe formats every field of a cell.
func (e *Editor) Describe(name string, cell inherit.CellKey) (map[string]string, error) {
	s, rec, err := e.record(name, cell)
	if err != nil {
		return nil, err
	}
	return schema.Describe(s, rec), nil
}

// assignColors gives every uncolored tag the color of its first colored
// sibling, or the next palette color.
func (e *Editor) assignColors(axis Axis, tags []tag.Tag) {
	tree := e.rows
	if axis == Columns {
		tree = e.cols
	}
	for _, t := range tags {
		if _, ok := e.table.TagColor(axis, t); ok {
			continue
		}
		c, ok := e.siblingColor(axis, tree, t)
		if !ok {
			c = e.colors.Next()
		}
		if err := e.table.SetTagColor(axis, t, c); err != nil {
			e.table.logger.Debug("skip tag color", "tag", string(t), "error", err)
		}
	}
}

func (e *Editor) siblingColor(axis Axis, tree *tag.Tree, t tag.Tag) (Color, bool) {
	id, ok := tree.Find(t)
	if !ok {
		return Color{}, false
	}
	for _, sib := range tree.Children(tree.Parent(id)) {
		if sib == id {
			continue
		}
		if c, ok := e.table.TagColor(axis, tree.Tag(sib)); ok {
			return c, true
		}
	}
	return Color{}, false
}
