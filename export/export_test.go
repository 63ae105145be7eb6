package export

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/hupe1980/affinity"
	"github.com/hupe1980/affinity/codec"
	"github.com/hupe1980/affinity/inherit"
	"github.com/hupe1980/affinity/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var damage = schema.MustStruct("DamageType",
	schema.FieldSpec{Name: "Kind", Kind: schema.KindString, Len: 16, Default: "None"},
	schema.FieldSpec{Name: "Amount", Kind: schema.KindFloat32, Default: 1.5},
	schema.FieldSpec{Name: "Lethal", Kind: schema.KindBool},
)

func newTable(t *testing.T) *affinity.Table {
	t.Helper()
	tbl, err := affinity.New(
		affinity.WithName("weapons"),
		affinity.WithSchemas(damage),
		affinity.WithLogger(affinity.NoopLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tbl.Close() })

	e := affinity.NewEditor(tbl)
	_, err = e.AddRow("Weapon.Sword")
	require.NoError(t, err)
	_, err = e.AddColumn("Enemy")
	require.NoError(t, err)
	require.NoError(t, e.SetCell("DamageType", inherit.Cell("Weapon", "Enemy"), "Kind", "Slash"))
	return tbl
}

func TestBuild(t *testing.T) {
	tbl := newTable(t)

	doc, err := Build(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, "weapons", doc.Table)
	assert.Equal(t, tbl.ID().String(), doc.ID)
	require.Len(t, doc.Rows, 2)
	assert.Equal(t, "Weapon", doc.Rows[0].Tag)
	assert.Equal(t, "Weapon", doc.Rows[1].Parent)
	assert.NotNil(t, doc.Rows[0].Color)

	require.Len(t, doc.Schemas, 1)
	sd := doc.Schemas[0]
	assert.Equal(t, []FieldDoc{{"Kind", "string"}, {"Amount", "float32"}, {"Lethal", "bool"}}, sd.Fields)
	require.Len(t, sd.Cells, 2)

	root, child := sd.Cells[0], sd.Cells[1]
	assert.Equal(t, "Slash", root.Values["Kind"])
	assert.Empty(t, root.Source)
	assert.Equal(t, "Weapon.Sword", child.Row)
	assert.Equal(t, "Slash", child.Values["Kind"])
	assert.Equal(t, float32(1.5), child.Values["Amount"])
	assert.Equal(t, "Weapon|Enemy", child.Source)
}

func TestBuild_UnknownSchema(t *testing.T) {
	_, err := Build(context.Background(), newTable(t), WithSchemas("Missing"))
	assert.ErrorIs(t, err, affinity.ErrSchemaNotRegistered)
}

func TestJSON(t *testing.T) {
	tbl := newTable(t)

	for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, JSON(context.Background(), &buf, tbl, WithCodec(c)))

			var doc Document
			require.NoError(t, c.Unmarshal(buf.Bytes(), &doc))
			assert.Equal(t, c.Name(), doc.Codec)
			assert.Equal(t, "weapons", doc.Table)
			require.Len(t, doc.Schemas, 1)
			assert.Equal(t, "Slash", doc.Schemas[0].Cells[1].Values["Kind"])
		})
	}
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "weapons.db")
	require.NoError(t, SQLite(ctx, path, newTable(t)))
	// A second export replaces the file.
	require.NoError(t, SQLite(ctx, path, newTable(t)))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var kind string
	var amount float64
	var lethal int
	row := db.QueryRowContext(ctx, `SELECT "Kind", "Amount", "Lethal" FROM "DamageType" WHERE row_tag = ? AND col_tag = ?`, "Weapon.Sword", "Enemy")
	require.NoError(t, row.Scan(&kind, &amount, &lethal))
	assert.Equal(t, "Slash", kind)
	assert.InDelta(t, 1.5, amount, 1e-6)
	assert.Equal(t, 0, lethal)

	var parentRow, parentCol string
	row = db.QueryRowContext(ctx, `SELECT parent_row, parent_col FROM inheritance WHERE schema = ? AND row_tag = ?`, "DamageType", "Weapon.Sword")
	require.NoError(t, row.Scan(&parentRow, &parentCol))
	assert.Equal(t, "Weapon", parentRow)
	assert.Equal(t, "Enemy", parentCol)

	var name string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT value FROM affinity_meta WHERE key = 'table'`).Scan(&name))
	assert.Equal(t, "weapons", name)

	var tags int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM affinity_tags`).Scan(&tags))
	assert.Equal(t, 3, tags)
}

func TestWriteSQL_ReservedName(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer db.Close()

	err = WriteSQL(context.Background(), db, &Document{Schemas: []SchemaDoc{{Name: "inheritance"}}})
	assert.ErrorIs(t, err, ErrReservedName)
}
