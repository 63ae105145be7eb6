package affinity

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
	"github.com/hupe1980/affinity/inherit"
	"github.com/hupe1980/affinity/internal/index"
	"github.com/hupe1980/affinity/internal/page"
	"github.com/hupe1980/affinity/schema"
	"github.com/hupe1980/affinity/tag"
)

// Axis selects the row or the column taxonomy.
type Axis int

const (
	// Rows is the row axis.
	Rows Axis = iota
	// Columns is the column axis.
	Columns
)

// String implements fmt.Stringer.
func (a Axis) String() string {
	if a == Columns {
		return "column"
	}
	return "row"
}

// InvalidIndex is returned by index lookups that find no tag.
const InvalidIndex = index.Invalid

// tableState is everything a load replaces at once.
type tableState struct {
	rows      *index.Indexer
	cols      *index.Indexer
	pages     map[string]*page.Page
	rowColors map[tag.Tag]Color
	colColors map[tag.Tag]Color
	links     map[string]inherit.Links

	loadingErrors bool
}

func newTableState(tax tag.Taxonomy) *tableState {
	return &tableState{
		rows:      index.New(tax),
		cols:      index.New(tax),
		pages:     make(map[string]*page.Page),
		rowColors: make(map[tag.Tag]Color),
		colColors: make(map[tag.Tag]Color),
		links:     make(map[string]inherit.Links),
	}
}

func (s *tableState) indexer(axis Axis) *index.Indexer {
	if axis == Columns {
		return s.cols
	}
	return s.rows
}

func (s *tableState) colors(axis Axis) map[tag.Tag]Color {
	if axis == Columns {
		return s.colColors
	}
	return s.rowColors
}

func (s *tableState) names() []string {
	return slices.Sorted(maps.Keys(s.pages))
}

// deleteTag removes tg from one axis of every page, dropping its color and
// the links keyed on it.
func (s *tableState) deleteTag(axis Axis, tg tag.Tag) bool {
	i, ok := s.indexer(axis).Delete(tg)
	if !ok {
		return false
	}
	for _, p := range s.pages {
		if axis == Columns {
			p.DeleteColumn(int(i))
		} else {
			p.DeleteRow(int(i))
		}
	}
	delete(s.colors(axis), tg)
	for _, l := range s.links {
		if axis == Columns {
			l.DropColumn(tg)
		} else {
			l.DropRow(tg)
		}
	}
	return true
}

func (s *tableState) close() error {
	var errs []error
	for _, name := range s.names() {
		if err := s.pages[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page %s: %w", name, err))
		}
	}
	clear(s.pages)
	return errors.Join(errs...)
}

// liveIndices marks the indices of ix that hold a tag.
func liveIndices(ix *index.Indexer) *bitset.BitSet {
	b := bitset.New(uint(ix.Next()))
	for _, t := range ix.Tags() {
		b.Set(uint(ix.Lookup(t, true)))
	}
	return b
}

// Table stores one page of records per schema on a grid of row tags by column
// tags, and answers exact and closest-ancestor queries against it.
//
// A Table is not safe for concurrent use.
type Table struct {
	opts   options
	logger *Logger

	id          uuid.UUID
	name        string
	description string

	state  *tableState
	closed bool
}

// TableStats describes the shape and memory of a table.
type TableStats struct {
	Rows    int
	Columns int
	Links   int
	Pages   map[string]page.Stats
}

// New creates an empty table.
func New(optFns ...Option) (*Table, error) {
	o := applyOptions(optFns)

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	t := &Table{
		opts:        o,
		id:          id,
		name:        o.name,
		description: o.description,
		state:       newTableState(o.taxonomy),
	}
	t.logger = o.logger.WithTable(t.name, t.id)

	for _, s := range o.schemas {
		if err := t.addSchema(s); err != nil {
			_ = t.state.close()
			return nil, err
		}
	}
	return t, nil
}

// ID returns the table identity.
func (t *Table) ID() uuid.UUID { return t.id }

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Description returns the table description.
func (t *Table) Description() string { return t.description }

// SetDescription replaces the table description.
func (t *Table) SetDescription(desc string) {
	t.description = desc
	t.markDirty()
}

// Logger returns the table's logger.
func (t *Table) Logger() *Logger { return t.logger }

// Taxonomy returns the tag provider of both axes.
func (t *Table) Taxonomy() tag.Taxonomy { return t.opts.taxonomy }

// HasLoadingErrors reports whether the last load had to repair the data.
func (t *Table) HasLoadingErrors() bool { return t.state.loadingErrors }

// Schemas returns the names of the schemas with a page, sorted.
func (t *Table) Schemas() []string { return t.state.names() }

// Schema returns the schema of a page.
func (t *Table) Schema(name string) (schema.Schema, bool) {
	p, ok := t.state.pages[name]
	if !ok {
		return nil, false
	}
	return p.Schema(), true
}

// Tags returns the tags of an axis ordered by index.
func (t *Table) Tags(axis Axis) []tag.Tag { return t.state.indexer(axis).Tags() }

// SortedTags returns the tags of an axis in taxonomy order.
func (t *Table) SortedTags(axis Axis) []tag.Tag { return t.state.indexer(axis).Sorted() }

// Contains reports whether tg is indexed on axis.
func (t *Table) Contains(axis Axis, tg tag.Tag) bool {
	return t.state.indexer(axis).Contains(tg)
}

// Index returns the index of tg on axis. Unless exact is set, a miss falls
// back to the closest indexed ancestor. Misses return InvalidIndex.
func (t *Table) Index(axis Axis, tg tag.Tag, exact bool) uint32 {
	return t.state.indexer(axis).Lookup(tg, exact)
}

// Resolve is like Index but also returns the tag that matched.
func (t *Table) Resolve(axis Axis, tg tag.Tag, exact bool) (tag.Tag, uint32) {
	return t.state.indexer(axis).Resolve(tg, exact)
}

// Query returns the records of (row, col) for every named schema, in the
// order named. With no names, every page is queried in name order. The query
// succeeds only if both tags resolve and every schema yields a record.
//
// Returned records alias table memory and are valid until the cell is
// deleted or the table cleared, reloaded or closed.
func (t *Table) Query(row, col tag.Tag, exact bool, schemas ...string) ([][]byte, bool) {
	start := time.Now()
	recs, ok := t.query(row, col, exact, schemas)
	t.opts.metricsCollector.RecordQuery(time.Since(start), ok)
	return recs, ok
}

func (t *Table) query(row, col tag.Tag, exact bool, schemas []string) ([][]byte, bool) {
	if t.closed {
		return nil, false
	}
	r := t.state.rows.Lookup(row, exact)
	if r == index.Invalid {
		return nil, false
	}
	c := t.state.cols.Lookup(col, exact)
	if c == index.Invalid {
		return nil, false
	}

	pages, ok := t.queryPages(schemas)
	if !ok {
		return nil, false
	}
	out := make([][]byte, 0, len(pages))
	for _, p := range pages {
		rec := p.Get(int(r), int(c))
		if rec == nil {
			return nil, false
		}
		out = append(out, rec)
	}
	return out, true
}

// QueryRow returns, per named schema, every record of row in column order.
// It follows the same all-or-nothing contract as Query.
func (t *Table) QueryRow(row tag.Tag, exact bool, schemas ...string) ([][][]byte, bool) {
	start := time.Now()
	rows, ok := t.queryRow(row, exact, schemas)
	t.opts.metricsCollector.RecordQueryRow(time.Since(start), ok)
	return rows, ok
}

func (t *Table) queryRow(row tag.Tag, exact bool, schemas []string) ([][][]byte, bool) {
	if t.closed {
		return nil, false
	}
	r := t.state.rows.Lookup(row, exact)
	if r == index.Invalid {
		return nil, false
	}

	pages, ok := t.queryPages(schemas)
	if !ok {
		return nil, false
	}
	out := make([][][]byte, 0, len(pages))
	for _, p := range pages {
		recs := p.GetRow(int(r))
		if recs == nil {
			return nil, false
		}
		out = append(out, recs)
	}
	return out, true
}

func (t *Table) queryPages(schemas []string) ([]*page.Page, bool) {
	if len(schemas) == 0 {
		schemas = t.state.names()
	}
	pages := make([]*page.Page, 0, len(schemas))
	for _, name := range schemas {
		p, ok := t.state.pages[name]
		if !ok {
			t.logger.Error("query for unregistered schema", "schema", name)
			return nil, false
		}
		pages = append(pages, p)
	}
	return pages, true
}

// CellData returns the record of one schema at the exact cell, or nil.
func (t *Table) CellData(name string, cell inherit.CellKey) []byte {
	p, ok := t.state.pages[name]
	if !ok {
		return nil
	}
	r := t.state.rows.Lookup(cell.Row, true)
	c := t.state.cols.Lookup(cell.Column, true)
	if r == index.Invalid || c == index.Invalid {
		return nil
	}
	return p.Get(int(r), int(c))
}

// RowData returns every record of one schema on the exact row.
func (t *Table) RowData(name string, row tag.Tag) [][]byte {
	p, ok := t.state.pages[name]
	if !ok {
		return nil
	}
	r := t.state.rows.Lookup(row, true)
	if r == index.Invalid {
		return nil
	}
	return p.GetRow(int(r))
}

// CellsIdentical reports whether two cells hold equal records of one schema.
// Missing cells are never identical.
func (t *Table) CellsIdentical(name string, a, b inherit.CellKey) bool {
	ra, rb := t.CellData(name, a), t.CellData(name, b)
	if ra == nil || rb == nil {
		return false
	}
	s, _ := t.Schema(name)
	return s.Equal(ra, rb)
}

// CopyCell overwrites the record of dst with the record of src. It reports
// false if either cell is missing.
func (t *Table) CopyCell(name string, dst, src inherit.CellKey) bool {
	rd, rs := t.CellData(name, dst), t.CellData(name, src)
	if rd == nil || rs == nil {
		return false
	}
	s, _ := t.Schema(name)
	s.Copy(rd, rs)
	t.markDirty()
	return true
}

// AddRow indexes tg and any missing ancestors, growing every page by one row
// per newly indexed tag. It returns false if tg was already indexed.
func (t *Table) AddRow(tg tag.Tag) (bool, error) { return t.addTag(Rows, tg) }

// AddColumn indexes tg and any missing ancestors, growing every page by one
// column per newly indexed tag. It returns false if tg was already indexed.
func (t *Table) AddColumn(tg tag.Tag) (bool, error) { return t.addTag(Columns, tg) }

func (t *Table) addTag(axis Axis, tg tag.Tag) (bool, error) {
	if t.closed {
		return false, ErrClosed
	}
	if !t.opts.taxonomy.Exists(tg) {
		return false, fmt.Errorf("%w: %q", ErrInvalidTag, tg)
	}

	ix := t.state.indexer(axis)
	from := int(ix.Next())
	if !ix.Add(tg) {
		return false, nil
	}
	to := int(ix.Next())

	if err := t.growPages(axis, from, to); err != nil {
		for _, added := range ix.Tags() {
			if int(ix.Lookup(added, true)) >= from {
				ix.Delete(added)
			}
		}
		return false, err
	}
	t.markDirty()
	return true, nil
}

// growPages adds indices [from, to) of axis to every page. On failure the
// new indices are retired on every page, so page dimensions keep matching
// the indexers.
func (t *Table) growPages(axis Axis, from, to int) error {
	for _, name := range t.state.names() {
		p := t.state.pages[name]
		for range to - from {
			var err error
			if axis == Columns {
				_, err = p.AddColumn()
			} else {
				_, err = p.AddRow()
			}
			if err != nil {
				t.retireGrowth(axis, from, to)
				return fmt.Errorf("grow %s of page %s: %w", axis, name, err)
			}
		}
	}
	return nil
}

func (t *Table) retireGrowth(axis Axis, from, to int) {
	for _, p := range t.state.pages {
		rows, cols := p.Dimensions()
		for i := from; i < to; i++ {
			switch {
			case axis == Columns && i < cols:
				p.DeleteColumn(i)
			case axis == Columns:
				p.AddRetiredColumn()
			case i < rows:
				p.DeleteRow(i)
			default:
				p.AddDeletedRow()
			}
		}
	}
}

// DeleteRow removes tg from the row axis of every page and drops its color
// and links. Descendant tags are left in place. It reports false if tg was
// not indexed.
func (t *Table) DeleteRow(tg tag.Tag) bool { return t.deleteTag(Rows, tg) }

// DeleteColumn removes tg from the column axis of every page and drops its
// color and links. The column index is retired for good. It reports false if
// tg was not indexed.
func (t *Table) DeleteColumn(tg tag.Tag) bool { return t.deleteTag(Columns, tg) }

func (t *Table) deleteTag(axis Axis, tg tag.Tag) bool {
	if t.closed || !t.state.deleteTag(axis, tg) {
		return false
	}
	t.markDirty()
	return true
}

// SetTagColor sets the display color of an indexed tag.
func (t *Table) SetTagColor(axis Axis, tg tag.Tag, c Color) error {
	if !t.state.indexer(axis).Contains(tg) {
		return fmt.Errorf("%w: %s %q", ErrTagNotFound, axis, tg)
	}
	t.state.colors(axis)[tg] = c
	t.markDirty()
	return nil
}

// TagColor returns the display color of a tag, if one is set.
func (t *Table) TagColor(axis Axis, tg tag.Tag) (Color, bool) {
	c, ok := t.state.colors(axis)[tg]
	return c, ok
}

// RegisterSchema adds a page for s sized to the current grid. Registering a
// schema that already has a page is a no-op; a different schema under the
// same name fails with ErrSchemaMismatch.
func (t *Table) RegisterSchema(s schema.Schema) error {
	if t.closed {
		return ErrClosed
	}
	if p, ok := t.state.pages[s.Name()]; ok {
		if p.Schema() != s {
			return fmt.Errorf("%w: %s is already registered", ErrSchemaMismatch, s.Name())
		}
		return nil
	}
	if err := t.addSchema(s); err != nil {
		return err
	}
	t.structureChanged()
	return nil
}

// RegisterSchemaByName resolves name through the schema registry, running a
// deferred resolver if needed, and registers the result.
func (t *Table) RegisterSchemaByName(name string) error {
	s, err := t.opts.registry.Ensure(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaNotRegistered, err)
	}
	return t.RegisterSchema(s)
}

// UnregisterSchema removes the page and links of a schema. It reports false
// if the schema had no page.
func (t *Table) UnregisterSchema(name string) bool {
	p, ok := t.state.pages[name]
	if !ok {
		return false
	}
	if err := p.Close(); err != nil {
		t.logger.Warn("close page", "schema", name, "error", err)
	}
	delete(t.state.pages, name)
	delete(t.state.links, name)
	t.structureChanged()
	return true
}

func (t *Table) addSchema(s schema.Schema) error {
	t.opts.registry.Register(s)
	p, err := t.buildPage(t.state, s)
	if err != nil {
		return err
	}
	t.state.pages[s.Name()] = p
	if _, ok := t.state.links[s.Name()]; !ok {
		t.state.links[s.Name()] = inherit.Links{}
	}
	return nil
}

// buildPage creates a page for s shaped like the indexers of st: one column
// per column index and one row per row index, deleted indices included.
func (t *Table) buildPage(st *tableState, s schema.Schema) (*page.Page, error) {
	opts := page.Options{
		Fixed:  t.opts.fixed,
		Logger: t.logger.WithSchema(s.Name()).Logger,
	}
	if t.opts.resources != nil {
		opts.Acquirer = t.opts.resources
	}
	if t.opts.fixed {
		opts.Capacity = st.rows.Len() * st.cols.Len()
	}

	p, err := page.New(s, 0, 0, opts)
	if err != nil {
		return nil, fmt.Errorf("create page %s: %w", s.Name(), err)
	}

	liveCols := liveIndices(st.cols)
	for i := range uint(st.cols.Next()) {
		if !liveCols.Test(i) {
			p.AddRetiredColumn()
			continue
		}
		if _, err := p.AddColumn(); err != nil {
			_ = p.Close()
			return nil, err
		}
	}
	liveRows := liveIndices(st.rows)
	for i := range uint(st.rows.Next()) {
		if !liveRows.Test(i) {
			p.AddDeletedRow()
			continue
		}
		if _, err := p.AddRow(); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("create page %s: %w", s.Name(), err)
		}
	}
	return p, nil
}

// Links returns the inheritance links of a schema, or nil if it has no page.
// The map is live: changes are saved with the table.
func (t *Table) Links(name string) inherit.Links {
	if _, ok := t.state.pages[name]; !ok {
		return nil
	}
	l, ok := t.state.links[name]
	if !ok {
		l = inherit.Links{}
		t.state.links[name] = l
	}
	return l
}

// Clear removes every tag, record, color and link. Registered schemas keep
// an empty page.
func (t *Table) Clear() {
	old := t.state
	t.state = newTableState(t.opts.taxonomy)
	for _, name := range old.names() {
		s := old.pages[name].Schema()
		if err := t.addSchema(s); err != nil {
			t.logger.Error("recreate page", "schema", name, "error", err)
		}
	}
	if err := old.close(); err != nil {
		t.logger.Warn("release cleared pages", "error", err)
	}
}

// Compact unmaps record pools that hold no live records and returns how
// many pools are unmapped afterwards.
func (t *Table) Compact() (int, error) {
	n := 0
	var errs []error
	for name, p := range t.state.pages {
		k, err := p.Compact()
		if err != nil {
			errs = append(errs, fmt.Errorf("compact %s: %w", name, err))
		}
		n += k
	}
	return n, errors.Join(errs...)
}

// Stats returns a snapshot of the table.
func (t *Table) Stats() TableStats {
	st := TableStats{
		Rows:    t.state.rows.Len(),
		Columns: t.state.cols.Len(),
		Pages:   make(map[string]page.Stats, len(t.state.pages)),
	}
	for name, p := range t.state.pages {
		st.Pages[name] = p.Stats()
	}
	for _, l := range t.state.links {
		st.Links += len(l)
	}
	return st
}

// Close releases every page. The table is unusable afterwards.
func (t *Table) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.state.close()
}

func (t *Table) markDirty() {
	if t.opts.onDirty != nil {
		t.opts.onDirty()
	}
}

func (t *Table) structureChanged() {
	if t.opts.onStructure != nil {
		t.opts.onStructure()
	}
	t.markDirty()
}
