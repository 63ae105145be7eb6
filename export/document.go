package export

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/affinity"
	"github.com/hupe1980/affinity/inherit"
	"github.com/hupe1980/affinity/schema"
	"github.com/hupe1980/affinity/tag"
	"golang.org/x/sync/errgroup"
)

// Document is the exported form of a table.
type Document struct {
	Table       string      `json:"table"`
	ID          string      `json:"id"`
	Description string      `json:"description,omitempty"`
	Codec       string      `json:"codec,omitempty"`
	Rows        []TagDoc    `json:"rows"`
	Columns     []TagDoc    `json:"columns"`
	Schemas     []SchemaDoc `json:"schemas"`
}

// TagDoc is one row or column.
type TagDoc struct {
	Tag    string      `json:"tag"`
	Parent string      `json:"parent,omitempty"`
	Color  *[4]float32 `json:"color,omitempty"`
}

// SchemaDoc holds every cell of one schema.
type SchemaDoc struct {
	Name   string     `json:"name"`
	Fields []FieldDoc `json:"fields"`
	Cells  []CellDoc  `json:"cells"`
}

// FieldDoc describes one field of a schema.
type FieldDoc struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// CellDoc holds the field values of one cell. Source names the cell it
// inherits from, in "row|column" form.
type CellDoc struct {
	Row    string         `json:"row"`
	Column string         `json:"column"`
	Values map[string]any `json:"values"`
	Source string         `json:"source,omitempty"`
}

// Build collects the document of t. Schemas are collected in parallel; the
// table must not be modified while Build runs.
func Build(ctx context.Context, t *affinity.Table, optFns ...Option) (*Document, error) {
	o := applyOptions(optFns)

	names := o.schemas
	if len(names) == 0 {
		names = t.Schemas()
	}
	rows := t.SortedTags(affinity.Rows)
	cols := t.SortedTags(affinity.Columns)

	doc := &Document{
		Table:       t.Name(),
		ID:          t.ID().String(),
		Description: t.Description(),
		Rows:        tagDocs(t, affinity.Rows, rows),
		Columns:     tagDocs(t, affinity.Columns, cols),
		Schemas:     make([]SchemaDoc, len(names)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, name := range names {
		g.Go(func() error {
			s, ok := t.Schema(name)
			if !ok {
				return fmt.Errorf("%w: %s", affinity.ErrSchemaNotRegistered, name)
			}
			sd, err := schemaDoc(ctx, t, s, rows, cols)
			if err != nil {
				return err
			}
			doc.Schemas[i] = sd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return doc, nil
}

func tagDocs(t *affinity.Table, axis affinity.Axis, tags []tag.Tag) []TagDoc {
	out := make([]TagDoc, 0, len(tags))
	for _, tg := range tags {
		td := TagDoc{Tag: string(tg), Parent: string(t.Taxonomy().Parent(tg))}
		if c, ok := t.TagColor(axis, tg); ok {
			td.Color = &[4]float32{c.R, c.G, c.B, c.A}
		}
		out = append(out, td)
	}
	return out
}

func schemaDoc(ctx context.Context, t *affinity.Table, s schema.Schema, rows, cols []tag.Tag) (SchemaDoc, error) {
	sd := SchemaDoc{
		Name:  s.Name(),
		Cells: make([]CellDoc, 0, len(rows)*len(cols)),
	}
	for _, f := range s.Fields() {
		sd.Fields = append(sd.Fields, FieldDoc{Name: f.Name, Kind: f.Kind.String()})
	}

	links := t.Links(s.Name())
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return sd, err
		}
		for _, c := range cols {
			key := inherit.Cell(r, c)
			rec := t.CellData(s.Name(), key)
			if rec == nil {
				continue
			}
			cd := CellDoc{Row: string(r), Column: string(c), Values: make(map[string]any, len(s.Fields()))}
			for _, f := range s.Fields() {
				cd.Values[f.Name] = f.Value(rec)
			}
			if parent, ok := links.Parent(key); ok {
				cd.Source = parent.String()
			}
			sd.Cells = append(sd.Cells, cd)
		}
	}
	return sd, nil
}

// JSON writes the document of t to w.
func JSON(ctx context.Context, w io.Writer, t *affinity.Table, optFns ...Option) error {
	o := applyOptions(optFns)
	doc, err := Build(ctx, t, optFns...)
	if err != nil {
		return err
	}
	doc.Codec = o.codec.Name()
	data, err := o.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", o.codec.Name(), err)
	}
	_, err = w.Write(data)
	return err
}
