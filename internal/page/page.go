package page

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/affinity/internal/pool"
	"github.com/hupe1980/affinity/schema"
)

var (
	// ErrFixedCapacity is the panic value when a fixed-mode page runs out of slots.
	ErrFixedCapacity = errors.New("page: fixed-mode capacity exceeded")
	// ErrTooManyChunks is returned when a page cannot address another pool.
	ErrTooManyChunks = errors.New("page: too many chunks")
)

// Options configures a Page.
type Options struct {
	// Fixed pre-sizes the page to exactly rows×cols records.
	Fixed bool
	// Logger receives page and pool diagnostics.
	Logger *slog.Logger
	// Acquirer budgets the memory of the page's pools.
	Acquirer pool.MemoryAcquirer
	// Capacity, when positive, replaces rows×cols as the number of records
	// reserved at construction. Pages that are shaped row by row after
	// construction use it to pre-size fixed mode.
	Capacity int
}

// Stats describes the shape and memory of a page.
type Stats struct {
	Rows           int
	DeletedRows    int
	Columns        int
	RetiredColumns int
	Chunks         int
	MappedChunks   int
	LiveRecords    int
	BytesHeld      int
}

// Page is the row×column grid of one schema.
type Page struct {
	schema schema.Schema
	opts   Options

	rows        [][]Handle // nil for deleted rows
	deletedRows *roaring.Bitmap
	cols        int
	retired     *roaring.Bitmap

	pools  []*pool.Pool
	active int
}

// New creates a page of rows×cols default-constructed records.
func New(s schema.Schema, rows, cols int, opts Options) (*Page, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	p := &Page{
		schema:      s,
		opts:        opts,
		deletedRows: roaring.New(),
		retired:     roaring.New(),
		cols:        cols,
	}

	n := rows * cols
	if opts.Capacity > 0 {
		n = opts.Capacity
	}
	if n > 0 {
		if err := p.allocate(n); err != nil {
			return nil, err
		}
	} else if opts.Fixed {
		p.opts.Logger.Debug("fixed-mode page created empty", slog.String("schema", s.Name()))
	}

	for range rows {
		if _, err := p.AddRow(); err != nil {
			_ = p.Close()
			return nil, err
		}
	}
	return p, nil
}

// Schema returns the page's record schema.
func (p *Page) Schema() schema.Schema { return p.schema }

// Fixed reports whether the page is in fixed mode.
func (p *Page) Fixed() bool { return p.opts.Fixed }

// Dimensions returns the row and column counts, deleted and retired included.
func (p *Page) Dimensions() (rows, cols int) { return len(p.rows), p.cols }

// RowDeleted reports whether row i was deleted.
func (p *Page) RowDeleted(i int) bool {
	return i >= 0 && i < len(p.rows) && p.rows[i] == nil
}

// ColumnRetired reports whether column i was deleted.
func (p *Page) ColumnRetired(i int) bool {
	return i >= 0 && p.retired.Contains(uint32(i)) //nolint:gosec // i >= 0
}

// AddRow appends a row holding one record per live column and returns its index.
func (p *Page) AddRow() (int, error) {
	row := make([]Handle, p.cols)
	for c := range row {
		if p.retired.Contains(uint32(c)) { //nolint:gosec // c >= 0
			continue
		}
		h, err := p.acquire()
		if err != nil {
			p.releaseAll(row[:c])
			return 0, err
		}
		row[c] = h
	}
	p.rows = append(p.rows, row)
	return len(p.rows) - 1, nil
}

// AddColumn appends one record to every live row and returns the new column
// index.
func (p *Page) AddColumn() (int, error) {
	for r, row := range p.rows {
		if row == nil {
			continue
		}
		h, err := p.acquire()
		if err != nil {
			p.truncateColumn(r)
			return 0, err
		}
		p.rows[r] = append(row, h)
	}
	p.cols++
	return p.cols - 1, nil
}

// AddDeletedRow appends an empty row marker without allocating records.
func (p *Page) AddDeletedRow() int {
	p.rows = append(p.rows, nil)
	i := len(p.rows) - 1
	p.deletedRows.Add(uint32(i)) //nolint:gosec // i >= 0
	return i
}

// AddRetiredColumn appends an already retired column without allocating
// records.
func (p *Page) AddRetiredColumn() int {
	for r, row := range p.rows {
		if row != nil {
			p.rows[r] = append(row, Invalid)
		}
	}
	p.retired.Add(uint32(p.cols)) //nolint:gosec // cols >= 0
	p.cols++
	return p.cols - 1
}

// DeleteRow releases every record of row i and leaves an empty marker. It
// reports false if the row is out of range or already deleted.
func (p *Page) DeleteRow(i int) bool {
	if i < 0 || i >= len(p.rows) || p.rows[i] == nil {
		return false
	}
	p.releaseAll(p.rows[i])
	p.rows[i] = nil
	p.deletedRows.Add(uint32(i)) //nolint:gosec // i >= 0
	return true
}

// DeleteColumn releases column i of every live row and retires the index. It
// reports false if the column is out of range or already retired.
func (p *Page) DeleteColumn(i int) bool {
	if i < 0 || i >= p.cols || p.retired.Contains(uint32(i)) { //nolint:gosec // i >= 0
		return false
	}
	for _, row := range p.rows {
		if row == nil {
			continue
		}
		p.release(row[i])
		row[i] = Invalid
	}
	p.retired.Add(uint32(i)) //nolint:gosec // i >= 0
	return true
}

// Handle returns the handle at (row, col), or Invalid.
func (p *Page) Handle(row, col int) Handle {
	if row < 0 || row >= len(p.rows) || col < 0 || col >= p.cols {
		return Invalid
	}
	r := p.rows[row]
	if r == nil {
		return Invalid
	}
	return r[col]
}

// Get returns the record at (row, col), or nil if the row is deleted, the
// column retired or the indices out of range.
func (p *Page) Get(row, col int) []byte {
	return p.Resolve(p.Handle(row, col))
}

// Resolve returns the record named by h, or nil.
func (p *Page) Resolve(h Handle) []byte {
	if !h.Valid() || int(h.Chunk) >= len(p.pools) {
		return nil
	}
	rec := p.pools[h.Chunk].Get(h.ref())
	if rec == nil {
		return nil
	}
	return rec[:p.schema.Size()]
}

// GetRow returns every valid record of row in column order.
func (p *Page) GetRow(row int) [][]byte {
	if row < 0 || row >= len(p.rows) || p.rows[row] == nil {
		return nil
	}
	out := make([][]byte, 0, p.cols)
	for _, h := range p.rows[row] {
		if rec := p.Resolve(h); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// Compact unmaps pools whose slots are all free and returns how many pools
// hold no memory afterwards. Every pool is visited even when one fails.
func (p *Page) Compact() (int, error) {
	n := 0
	var errs []error
	for _, pl := range p.pools {
		empty, err := pl.Compact()
		if err != nil {
			errs = append(errs, err)
		}
		if empty {
			n++
		}
	}
	return n, errors.Join(errs...)
}

// Stats returns a snapshot of the page.
func (p *Page) Stats() Stats {
	st := Stats{
		Rows:           len(p.rows),
		DeletedRows:    int(p.deletedRows.GetCardinality()),
		Columns:        p.cols,
		RetiredColumns: int(p.retired.GetCardinality()),
		Chunks:         len(p.pools),
	}
	for _, pl := range p.pools {
		ps := pl.Stats()
		if ps.Mapped {
			st.MappedChunks++
		}
		st.LiveRecords += ps.Live
		st.BytesHeld += ps.BytesHeld
	}
	return st
}

// DeletedRows returns the indices of deleted rows in increasing order.
func (p *Page) DeletedRows() []int { return toInts(p.deletedRows) }

// RetiredColumns returns the indices of retired columns in increasing order.
func (p *Page) RetiredColumns() []int { return toInts(p.retired) }

// Close releases every pool.
func (p *Page) Close() error {
	var errs []error
	for _, pl := range p.pools {
		if err := pl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.pools = nil
	p.rows = nil
	return errors.Join(errs...)
}

// allocate adds pools for capacity records: full chunks plus a remainder.
// The active cursor moves to the first new pool.
func (p *Page) allocate(capacity int) error {
	full := capacity / pool.MaxChunkCapacity
	rest := capacity % pool.MaxChunkCapacity

	first := len(p.pools)
	for range full {
		if err := p.addPool(pool.MaxChunkCapacity); err != nil {
			return err
		}
	}
	if rest > 0 {
		if err := p.addPool(rest); err != nil {
			return err
		}
	}
	p.active = first
	return nil
}

// maxChunks is the number of pools a uint16 chunk index can address.
const maxChunks = math.MaxUint16 + 1

func (p *Page) addPool(capacity int) error {
	if len(p.pools) >= maxChunks {
		return fmt.Errorf("%w: %s", ErrTooManyChunks, p.schema.Name())
	}
	pl, err := pool.New(p.schema, capacity,
		pool.WithLogger(p.opts.Logger),
		pool.WithMemoryAcquirer(p.opts.Acquirer))
	if err != nil {
		return err
	}
	p.pools = append(p.pools, pl)
	return nil
}

func (p *Page) findAvailable() (Handle, bool, error) {
	if len(p.pools) == 0 {
		return Invalid, false, nil
	}
	if !p.pools[p.active].Full() {
		h, err := p.acquireFrom(p.active)
		return h, err == nil, err
	}
	for i, pl := range p.pools {
		if pl.Full() {
			continue
		}
		p.active = i
		h, err := p.acquireFrom(i)
		return h, err == nil, err
	}
	return Invalid, false, nil
}

func (p *Page) acquire() (Handle, error) {
	h, ok, err := p.findAvailable()
	if err != nil || ok {
		return h, err
	}

	if p.opts.Fixed {
		panic(fmt.Sprintf("%v: schema %s", ErrFixedCapacity, p.schema.Name()))
	}

	if err := p.allocate(pool.MaxChunkCapacity); err != nil {
		return Invalid, err
	}
	h, ok, err = p.findAvailable()
	if err != nil {
		return Invalid, err
	}
	if !ok {
		return Invalid, fmt.Errorf("%w after growing page %s", pool.ErrExhausted, p.schema.Name())
	}
	return h, nil
}

func (p *Page) acquireFrom(i int) (Handle, error) {
	ref, err := p.pools[i].Acquire()
	if err != nil {
		return Invalid, err
	}
	return Handle{Chunk: uint16(i), Slot: ref.Slot, Gen: ref.Gen}, nil //nolint:gosec // bounded by addPool
}

func (p *Page) release(h Handle) {
	if !h.Valid() || int(h.Chunk) >= len(p.pools) {
		return
	}
	if err := p.pools[h.Chunk].Release(h.ref()); err != nil {
		p.opts.Logger.Warn("release of stale handle",
			slog.String("schema", p.schema.Name()),
			slog.String("handle", h.String()),
			slog.Any("error", err))
	}
}

func (p *Page) releaseAll(hs []Handle) {
	for _, h := range hs {
		p.release(h)
	}
}

// truncateColumn undoes a partially applied AddColumn on rows[:upto].
func (p *Page) truncateColumn(upto int) {
	for r := range upto {
		row := p.rows[r]
		if row == nil || len(row) <= p.cols {
			continue
		}
		p.release(row[p.cols])
		p.rows[r] = row[:p.cols]
	}
}

func toInts(b *roaring.Bitmap) []int {
	out := make([]int, 0, b.GetCardinality())
	it := b.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
