package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/affinity"
	"github.com/hupe1980/affinity/inherit"
	"github.com/hupe1980/affinity/schema"
	_ "modernc.org/sqlite"
)

// Reserved SQL table names. A schema may not use them.
const (
	metaTable        = "affinity_meta"
	tagsTable        = "affinity_tags"
	inheritanceTable = "inheritance"
)

// ErrReservedName is returned when a schema name collides with a table the
// SQLite export creates itself.
var ErrReservedName = errors.New("export: schema name is reserved")

const baseSQL = `
CREATE TABLE affinity_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE affinity_tags (
	axis   TEXT NOT NULL,
	tag    TEXT NOT NULL,
	parent TEXT,
	r REAL, g REAL, b REAL, a REAL,
	PRIMARY KEY (axis, tag)
);
CREATE TABLE inheritance (
	schema     TEXT NOT NULL,
	row_tag    TEXT NOT NULL,
	col_tag    TEXT NOT NULL,
	parent_row TEXT NOT NULL,
	parent_col TEXT NOT NULL,
	PRIMARY KEY (schema, row_tag, col_tag)
);
`

// SQLite writes t into a new SQLite database at path, replacing any
// existing file.
func SQLite(ctx context.Context, path string, t *affinity.Table, optFns ...Option) error {
	doc, err := Build(ctx, t, optFns...)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	return WriteSQL(ctx, db, doc)
}

// WriteSQL writes doc into db inside one transaction.
func WriteSQL(ctx context.Context, db *sql.DB, doc *Document) (err error) {
	for _, sd := range doc.Schemas {
		switch sd.Name {
		case metaTable, tagsTable, inheritanceTable:
			return fmt.Errorf("%w: %s", ErrReservedName, sd.Name)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, baseSQL); err != nil {
		return fmt.Errorf("create base tables: %w", err)
	}
	if err = writeMeta(ctx, tx, doc); err != nil {
		return err
	}
	if err = writeTags(ctx, tx, doc); err != nil {
		return err
	}
	for _, sd := range doc.Schemas {
		if err = writeSchema(ctx, tx, sd); err != nil {
			return fmt.Errorf("schema %s: %w", sd.Name, err)
		}
	}
	return tx.Commit()
}

func writeMeta(ctx context.Context, tx *sql.Tx, doc *Document) error {
	meta := [][2]string{
		{"table", doc.Table},
		{"id", doc.ID},
		{"description", doc.Description},
		{"format_version", fmt.Sprint(affinity.FormatVersion)},
	}
	for _, kv := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO affinity_meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeTags(ctx context.Context, tx *sql.Tx, doc *Document) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO affinity_tags (axis, tag, parent, r, g, b, a) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for axis, tags := range map[string][]TagDoc{"row": doc.Rows, "column": doc.Columns} {
		for _, td := range tags {
			var parent sql.NullString
			if td.Parent != "" {
				parent = sql.NullString{String: td.Parent, Valid: true}
			}
			var rgba [4]sql.NullFloat64
			if td.Color != nil {
				for i, v := range td.Color {
					rgba[i] = sql.NullFloat64{Float64: float64(v), Valid: true}
				}
			}
			if _, err := stmt.ExecContext(ctx, axis, td.Tag, parent, rgba[0], rgba[1], rgba[2], rgba[3]); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSchema(ctx context.Context, tx *sql.Tx, sd SchemaDoc) error {
	cols := []string{"row_tag TEXT NOT NULL", "col_tag TEXT NOT NULL"}
	names := []string{"row_tag", "col_tag"}
	for _, f := range sd.Fields {
		kind, _ := schema.ParseKind(f.Kind)
		cols = append(cols, quoteIdent(f.Name)+" "+sqlType(kind))
		names = append(names, quoteIdent(f.Name))
	}
	cols = append(cols, "PRIMARY KEY (row_tag, col_tag)")

	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(sd.Name), strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return err
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(sd.Name), strings.Join(names, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	link, err := tx.PrepareContext(ctx, `INSERT INTO inheritance (schema, row_tag, col_tag, parent_row, parent_col) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer link.Close()

	args := make([]any, len(names))
	for _, cd := range sd.Cells {
		args[0], args[1] = cd.Row, cd.Column
		for i, f := range sd.Fields {
			args[i+2] = sqlValue(cd.Values[f.Name])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
		if cd.Source == "" {
			continue
		}
		parent, err := inherit.ParseCellKey(cd.Source)
		if err != nil {
			return err
		}
		if _, err := link.ExecContext(ctx, sd.Name, cd.Row, cd.Column, string(parent.Row), string(parent.Column)); err != nil {
			return err
		}
	}
	return nil
}

func sqlType(k schema.Kind) string {
	switch k {
	case schema.KindBool, schema.KindInt32, schema.KindInt64, schema.KindUint32:
		return "INTEGER"
	case schema.KindFloat32, schema.KindFloat64:
		return "REAL"
	default:
		return "TEXT"
	}
}

func sqlValue(v any) any {
	switch v := v.(type) {
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case int32:
		return int64(v)
	case uint32:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
