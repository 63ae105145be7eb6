package affinity

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/affinity/inherit"
	"github.com/hupe1980/affinity/internal/conv"
	"github.com/hupe1980/affinity/internal/fs"
	"github.com/hupe1980/affinity/internal/index"
	"github.com/hupe1980/affinity/internal/page"
	"github.com/hupe1980/affinity/internal/wire"
	"github.com/hupe1980/affinity/tag"
)

// FormatVersion is the version written by Save.
//
// Version history:
//   - 2: one inheritance map shared by every schema.
//   - 3: per-schema inheritance maps.
//   - 4: table identity, per-page record footprint, CRC32 trailer.
const FormatVersion uint32 = 4

// maxPreallocate caps slice capacity taken from untrusted counts.
const maxPreallocate = 1 << 12

// maxFootprint bounds the stored record size read from a stream.
const maxFootprint = wire.MaxStringLen

// Save writes the table to w in the current format.
func (t *Table) Save(w io.Writer) error {
	start := time.Now()
	n, err := t.save(w)
	t.opts.metricsCollector.RecordSave(time.Since(start), err)
	t.logger.LogSave(context.Background(), n, err)
	return err
}

func (t *Table) save(w io.Writer) (int64, error) {
	if t.closed {
		return 0, ErrClosed
	}
	st := t.state
	enc := wire.NewWriter(w)

	enc.Uint32(FormatVersion)
	enc.Bytes(t.id[:])
	enc.String(t.name)
	enc.String(t.description)

	rowTags := st.rows.Tags()
	colTags := st.cols.Tags()
	writeTags(enc, rowTags)
	writeTags(enc, colTags)

	names := st.names()
	enc.Count(len(names))
	for _, name := range names {
		t.writePage(enc, st, st.pages[name], rowTags, colTags)
	}

	writeColors(enc, st.rowColors)
	writeColors(enc, st.colColors)

	enc.Count(len(names))
	for _, name := range names {
		enc.String(name)
		writeLinks(enc, st.links[name])
	}

	enc.Trailer()
	return enc.Len(), enc.Err()
}

// writePage writes the records of every live row × live column in index
// order. A missing record is written as the schema default.
func (t *Table) writePage(enc *wire.Writer, st *tableState, p *page.Page, rowTags, colTags []tag.Tag) {
	s := p.Schema()
	enc.String(s.Name())
	size, err := conv.IntToUint32(s.Size())
	if err != nil {
		enc.Fail(fmt.Errorf("schema %s: %w", s.Name(), err))
		return
	}
	enc.Uint32(size)

	cols := make([]int, len(colTags))
	for i, c := range colTags {
		cols[i] = int(st.cols.Lookup(c, true))
	}

	var fallback []byte
	for _, r := range rowTags {
		ri := int(st.rows.Lookup(r, true))
		for ci, c := range cols {
			rec := p.Get(ri, c)
			if rec == nil {
				t.logger.Error("missing page memory while saving; writing default record",
					"schema", s.Name(), "row", string(r), "column", string(colTags[ci]))
				if fallback == nil {
					fallback = make([]byte, s.Size())
					s.Construct(fallback)
				}
				rec = fallback
			}
			enc.Bytes(rec)
		}
	}
}

func writeTags(enc *wire.Writer, tags []tag.Tag) {
	enc.Count(len(tags))
	for _, t := range tags {
		enc.String(string(t))
	}
}

func writeColors(enc *wire.Writer, colors map[tag.Tag]Color) {
	enc.Count(len(colors))
	for _, t := range slices.Sorted(maps.Keys(colors)) {
		c := colors[t]
		enc.String(string(t))
		enc.Float32(c.R)
		enc.Float32(c.G)
		enc.Float32(c.B)
		enc.Float32(c.A)
	}
}

func writeLinks(enc *wire.Writer, links inherit.Links) {
	keys := slices.SortedFunc(maps.Keys(links), func(a, b inherit.CellKey) int {
		if c := tag.Compare(a.Row, b.Row); c != 0 {
			return c
		}
		return tag.Compare(a.Column, b.Column)
	})
	enc.Count(len(keys))
	for _, k := range keys {
		parent := links[k].Parent
		enc.String(k.String())
		enc.String(string(parent.Row))
		enc.String(string(parent.Column))
	}
}

// Load replaces the table contents with a stream written by Save, or by an
// older version of it. Loading is atomic: on failure the table is left empty
// and the error returned. Orphaned tags are removed and reported through
// HasLoadingErrors.
func (t *Table) Load(r io.Reader) error {
	start := time.Now()
	version, err := t.load(r)
	t.opts.metricsCollector.RecordLoad(time.Since(start), err)
	t.logger.LogLoad(context.Background(), version, err)
	return err
}

func (t *Table) load(r io.Reader) (uint32, error) {
	if t.closed {
		return 0, ErrClosed
	}
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}

	d := &decoder{t: t, in: wire.NewReader(r), st: newTableState(t.opts.taxonomy)}
	d.version = d.in.Uint32()
	if err := d.in.Err(); err != nil {
		t.Clear()
		return 0, fmt.Errorf("%w: read version: %w", ErrCorrupt, err)
	}

	load, ok := loaders[d.version]
	if !ok {
		t.Clear()
		return d.version, &FormatError{Version: d.version, Current: FormatVersion}
	}
	if d.version < FormatVersion {
		t.logger.Info("upgrading table format", "from", d.version, "to", FormatVersion)
	}

	if err := load(d); err != nil {
		_ = d.st.close()
		t.Clear()
		return d.version, err
	}
	if err := d.fillMissingPages(); err != nil {
		_ = d.st.close()
		t.Clear()
		return d.version, err
	}

	t.removeOrphans(d.st)

	old := t.state
	t.state = d.st
	if d.header != nil {
		t.id = d.header.id
		t.name = d.header.name
		t.description = d.header.description
		t.logger = t.opts.logger.WithTable(t.name, t.id)
	}
	if err := old.close(); err != nil {
		t.logger.Warn("release replaced pages", "error", err)
	}
	return d.version, nil
}

// removeOrphans deletes tags whose ancestor chain is incomplete or that the
// taxonomy no longer knows, until none are left.
func (t *Table) removeOrphans(st *tableState) {
	for _, axis := range []Axis{Rows, Columns} {
		ix := st.indexer(axis)
		for {
			orphans := ix.Orphans()
			if len(orphans) == 0 {
				break
			}
			for _, o := range orphans {
				t.logger.WithTag(o).Warn("removing orphaned tag", "axis", axis.String())
				st.deleteTag(axis, o)
			}
			st.loadingErrors = true
		}
	}
}

// SaveFile writes the table to path, replacing it atomically.
func (t *Table) SaveFile(path string) error {
	return fs.WriteAtomic(t.opts.fsys, path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := t.Save(bw); err != nil {
			return err
		}
		return bw.Flush()
	})
}

// LoadFile loads the table from path.
func (t *Table) LoadFile(path string) error {
	data, err := t.opts.fsys.ReadFile(path)
	if err != nil {
		return err
	}
	return t.Load(bytes.NewReader(data))
}

// loaders maps every readable format version to its decoder.
var loaders = map[uint32]func(*decoder) error{
	2:             loadV2,
	3:             loadV3,
	FormatVersion: loadV4,
}

type header struct {
	id          uuid.UUID
	name        string
	description string
}

// decoder reads one stream into a fresh table state.
type decoder struct {
	t       *Table
	in      *wire.Reader
	st      *tableState
	version uint32
	header  *header
}

func loadV4(d *decoder) error {
	d.readHeader()
	d.readTags()
	d.readPages(true)
	d.readColors()
	d.readLinks()
	d.in.Trailer()
	return d.err()
}

func (d *decoder) err() error {
	err := d.in.Err()
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, wire.ErrChecksum) || errors.Is(err, wire.ErrLimit) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return err
}

func (d *decoder) readHeader() {
	h := &header{}
	d.in.Bytes(h.id[:])
	h.name = d.in.String()
	h.description = d.in.String()
	d.header = h
}

func (d *decoder) readTags() {
	d.st.rows.Restore(d.readTagList())
	d.st.cols.Restore(d.readTagList())
}

func (d *decoder) readTagList() []tag.Tag {
	n := d.in.Count()
	tags := make([]tag.Tag, 0, min(n, maxPreallocate))
	for range n {
		if d.in.Err() != nil {
			return nil
		}
		tags = append(tags, tag.Tag(d.in.String()))
	}
	return tags
}

// readPages reads every stored page. Streams before version 4 carry no
// footprint; their records are assumed to match the registered schema.
func (d *decoder) readPages(footprint bool) {
	n := d.in.Count()
	for range n {
		if d.in.Err() != nil {
			return
		}
		name := d.in.String()
		stored := -1
		if footprint {
			n, err := conv.Uint32ToInt(d.in.Uint32())
			if err != nil {
				d.in.Fail(fmt.Errorf("%w: page %s: %w", ErrCorrupt, name, err))
				return
			}
			if n > maxFootprint {
				d.in.Fail(fmt.Errorf("%w: page %s: footprint of %d bytes", ErrCorrupt, name, n))
				return
			}
			stored = n
		}
		if d.in.Err() != nil {
			return
		}
		d.readPage(name, stored)
	}
}

func (d *decoder) readPage(name string, stored int) {
	if _, dup := d.st.pages[name]; dup {
		d.in.Fail(fmt.Errorf("%w: page %s stored twice", ErrCorrupt, name))
		return
	}
	s, err := d.t.opts.registry.Ensure(name)
	if err != nil {
		d.in.Fail(fmt.Errorf("%w: %w", ErrSchemaNotRegistered, err))
		return
	}
	p, err := d.t.buildPage(d.st, s)
	if err != nil {
		d.in.Fail(err)
		return
	}
	d.st.pages[name] = p
	d.st.links[name] = inherit.Links{}

	size := s.Size()
	if stored < 0 {
		stored = size
	}
	if stored != size {
		d.t.logger.Warn("record footprint mismatch; copying common prefix",
			"error", &FootprintError{Schema: name, Stored: stored, Actual: size})
	}

	rows := liveInOrder(d.st.rows)
	cols := liveInOrder(d.st.cols)
	buf := make([]byte, stored)
	common := min(stored, size)
	for _, r := range rows {
		for _, c := range cols {
			d.in.Bytes(buf)
			if d.in.Err() != nil {
				return
			}
			rec := p.Get(r, c)
			copy(rec[:common], buf[:common])
		}
	}
}

func liveInOrder(ix *index.Indexer) []int {
	tags := ix.Tags()
	out := make([]int, len(tags))
	for i, t := range tags {
		out[i] = int(ix.Lookup(t, true))
	}
	return out
}

func (d *decoder) readColors() {
	d.readColorMap(d.st.rowColors)
	d.readColorMap(d.st.colColors)
}

func (d *decoder) readColorMap(into map[tag.Tag]Color) {
	n := d.in.Count()
	for range n {
		if d.in.Err() != nil {
			return
		}
		t := tag.Tag(d.in.String())
		into[t] = Color{R: d.in.Float32(), G: d.in.Float32(), B: d.in.Float32(), A: d.in.Float32()}
	}
}

// readLinks reads one link map per schema.
func (d *decoder) readLinks() {
	n := d.in.Count()
	for range n {
		if d.in.Err() != nil {
			return
		}
		name := d.in.String()
		links := d.readLinkMap()
		if _, ok := d.st.pages[name]; !ok {
			d.t.logger.Warn("dropping inheritance links of unknown schema", "schema", name, "links", len(links))
			continue
		}
		d.st.links[name] = links
	}
}

func (d *decoder) readLinkMap() inherit.Links {
	n := d.in.Count()
	links := make(inherit.Links, min(n, maxPreallocate))
	for range n {
		if d.in.Err() != nil {
			return links
		}
		key, err := inherit.ParseCellKey(d.in.String())
		parentRow := tag.Tag(d.in.String())
		parentCol := tag.Tag(d.in.String())
		if err != nil {
			d.in.Fail(fmt.Errorf("%w: %w", ErrCorrupt, err))
			return links
		}
		links[key] = inherit.Link{Parent: inherit.Cell(parentRow, parentCol)}
	}
	return links
}

// fillMissingPages gives schemas registered on the table but absent from the
// stream a page of defaults.
func (d *decoder) fillMissingPages() error {
	for _, name := range d.t.state.names() {
		if _, ok := d.st.pages[name]; ok {
			continue
		}
		p, err := d.t.buildPage(d.st, d.t.state.pages[name].Schema())
		if err != nil {
			return err
		}
		d.st.pages[name] = p
		d.st.links[name] = inherit.Links{}
	}
	return nil
}
