package inherit

import (
	"testing"

	"github.com/hupe1980/affinity/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memData stores one string per cell.
type memData map[CellKey]string

func (m memData) Identical(a, b CellKey) bool { return m[a] == m[b] }
func (m memData) Copy(dst, src CellKey)       { m[dst] = m[src] }

func newGraph(rows, cols []tag.Tag) (*Graph, memData) {
	data := memData{}
	g := New(tag.NewTree(rows...), tag.NewTree(cols...), Links{}, data, nil)
	return g, data
}

func TestCellKey(t *testing.T) {
	k := Cell("A.B", "World.Impact")
	assert.Equal(t, "A.B|World.Impact", k.String())

	got, err := ParseCellKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, got)

	_, err = ParseCellKey("nope")
	assert.ErrorIs(t, err, ErrMalformedKey)
	_, err = ParseCellKey("A|B|X")
	assert.ErrorIs(t, err, ErrMalformedKey)
	assert.True(t, CellKey{}.IsZero())
}

func TestGraph_Assign(t *testing.T) {
	g, _ := newGraph([]tag.Tag{"A.B"}, []tag.Tag{"World.Impact"})

	require.True(t, g.Assign(Cell("A", "World"), RowStream))
	assert.False(t, g.Inherits(Cell("A", "World")))
	_, stored := g.Links()[Cell("A", "World")]
	assert.True(t, stored, "independence is stored explicitly")

	g.Assign(Cell("A", "World.Impact"), RowStream)
	src, ok := g.Source(Cell("A", "World.Impact"))
	require.True(t, ok)
	assert.Equal(t, Cell("A", "World"), src, "falls back to the column axis")

	g.Assign(Cell("A.B", "World"), RowStream)
	src, _ = g.Source(Cell("A.B", "World"))
	assert.Equal(t, Cell("A", "World"), src)

	g.Assign(Cell("A.B", "World.Impact"), ColumnStream)
	src, _ = g.Source(Cell("A.B", "World.Impact"))
	assert.Equal(t, Cell("A", "World"), src, "links to the terminal source, not (A.B, World)")

	assert.False(t, g.Assign(Cell("Q", "World"), RowStream))
}

func TestGraph_Scenario(t *testing.T) {
	g, data := newGraph([]tag.Tag{"A", "A.B"}, []tag.Tag{"World", "World.Impact"})
	data[Cell("A", "World")] = "Slash"

	assert.Equal(t, 4, g.Restore())
	for _, k := range []CellKey{Cell("A.B", "World"), Cell("A", "World.Impact"), Cell("A.B", "World.Impact")} {
		src, ok := g.Source(k)
		require.True(t, ok, k.String())
		assert.Equal(t, Cell("A", "World"), src)
		assert.Equal(t, "Slash", data[k])
	}

	// Edit (A.B, World): it breaks away and takes (A.B, World.Impact) with it.
	data[Cell("A.B", "World")] = "Pierce"
	relinked := g.ValueChanged(Cell("A.B", "World"))
	assert.Equal(t, []CellKey{Cell("A.B", "World.Impact")}, relinked)

	assert.False(t, g.Inherits(Cell("A.B", "World")))
	assert.Equal(t, "Slash", data[Cell("A", "World")])
	assert.Equal(t, "Slash", data[Cell("A", "World.Impact")])
	assert.Equal(t, "Pierce", data[Cell("A.B", "World.Impact")])
	src, _ := g.Source(Cell("A.B", "World.Impact"))
	assert.Equal(t, Cell("A.B", "World"), src)

	// Later edits of the source flow down.
	data[Cell("A.B", "World")] = "Blunt"
	g.ValueChanged(Cell("A.B", "World"))
	assert.Equal(t, "Blunt", data[Cell("A.B", "World.Impact")])
}

func TestGraph_GatherColumnDown(t *testing.T) {
	g, data := newGraph([]tag.Tag{"A.B.C", "A.D"}, []tag.Tag{"X"})
	data[Cell("A", "X")] = "root"
	g.Restore()

	got := g.Gather(Cell("A", "X"), false)
	assert.ElementsMatch(t, []CellKey{Cell("A.B", "X"), Cell("A.B.C", "X"), Cell("A.D", "X")}, got)
	assert.Nil(t, g.Gather(Cell("A.B", "X"), false), "inheritors have no inheritors")

	// An independent cell in the middle shields its subtree.
	data[Cell("A.B", "X")] = "mid"
	g.MakeIndependent(Cell("A.B", "X"))
	assert.ElementsMatch(t, []CellKey{Cell("A.D", "X")}, g.Gather(Cell("A", "X"), false))
	assert.ElementsMatch(t, []CellKey{Cell("A.B.C", "X")}, g.Gather(Cell("A.B", "X"), false))
	assert.Equal(t, "mid", data[Cell("A.B.C", "X")])
}

func TestGraph_Acquire(t *testing.T) {
	g, data := newGraph([]tag.Tag{"A.B.C"}, []tag.Tag{"X"})
	data[Cell("A", "X")] = "root"
	g.Restore()

	data[Cell("A.B", "X")] = "mid"
	g.MakeIndependent(Cell("A.B", "X"))
	require.Equal(t, "mid", data[Cell("A.B.C", "X")])

	affected := g.Acquire(Cell("A.B", "X"), RowStream)
	assert.Equal(t, []CellKey{Cell("A.B.C", "X")}, affected)
	for _, k := range []CellKey{Cell("A.B", "X"), Cell("A.B.C", "X")} {
		src, ok := g.Source(k)
		require.True(t, ok)
		assert.Equal(t, Cell("A", "X"), src)
		assert.Equal(t, "root", data[k])
	}
	assert.Nil(t, g.Acquire(Cell("A.B", "X"), RowStream))
}

func TestGraph_Reset(t *testing.T) {
	g, data := newGraph([]tag.Tag{"A.B"}, []tag.Tag{"X.Y"})
	data[Cell("A", "X")] = "root"
	g.Restore()
	data[Cell("A.B", "X.Y")] = "authored"
	g.MakeIndependent(Cell("A.B", "X.Y"))

	g.Reset()
	for _, k := range []CellKey{Cell("A.B", "X"), Cell("A", "X.Y"), Cell("A.B", "X.Y")} {
		src, ok := g.Source(k)
		require.True(t, ok, k.String())
		assert.Equal(t, Cell("A", "X"), src)
		assert.Equal(t, "root", data[k])
	}
}

func TestGraph_RestoreKeepsStoredLinks(t *testing.T) {
	links := Links{
		Cell("A", "X"):   {},
		Cell("A.B", "X"): {}, // authored
		Cell("A.C", "X"): {Parent: Cell("Gone", "X")},
	}
	data := memData{Cell("A", "X"): "root", Cell("A.B", "X"): "own"}
	g := New(tag.NewTree("A.B", "A.C"), tag.NewTree("X"), links, data, nil)

	assert.Equal(t, 1, g.Restore(), "only the dangling link is reassigned")
	assert.False(t, g.Inherits(Cell("A.B", "X")))
	assert.Equal(t, "own", data[Cell("A.B", "X")])
	src, _ := g.Source(Cell("A.C", "X"))
	assert.Equal(t, Cell("A", "X"), src)
	assert.Equal(t, "root", data[Cell("A.C", "X")])
}

func TestLinks_Drop(t *testing.T) {
	l := Links{
		Cell("A", "X"):   {},
		Cell("A.B", "X"): {Parent: Cell("A", "X")},
		Cell("AB", "X"):  {},
		Cell("A", "X.Y"): {Parent: Cell("A", "X")},
	}
	c := l.Clone()
	c.DropRow("A")
	assert.Equal(t, Links{
		Cell("A.B", "X"): {Parent: Cell("A", "X")},
		Cell("AB", "X"):  {},
	}, c, "descendant rows keep their entries")

	l.DropColumn("X.Y")
	assert.Len(t, l, 3)
}
