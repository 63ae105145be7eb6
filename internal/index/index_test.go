package index

import (
	"testing"

	"github.com/hupe1980/affinity/tag"
	"github.com/stretchr/testify/assert"
)

func TestIndexer_Add(t *testing.T) {
	ix := New(nil)

	assert.True(t, ix.Add("A.B.C"))
	assert.Equal(t, []tag.Tag{"A", "A.B", "A.B.C"}, ix.Tags(), "ancestors are indexed first")
	assert.Equal(t, uint32(3), ix.Next())

	before := ix.Tags()
	assert.False(t, ix.Add("A.B"), "re-adding is a no-op")
	assert.False(t, ix.Add(""), "root is never indexed")
	assert.False(t, ix.Add("A..B"))
	assert.Equal(t, before, ix.Tags())
	assert.Equal(t, uint32(1), ix.Lookup("A.B", true))
}

func TestIndexer_Lookup(t *testing.T) {
	ix := New(nil)
	ix.Add("A")

	tests := []struct {
		name  string
		tag   tag.Tag
		exact bool
		want  uint32
	}{
		{"exact hit", "A", true, 0},
		{"closest match", "A.B.C", false, 0},
		{"exact miss", "A.B.C", true, Invalid},
		{"unrelated", "World", false, Invalid},
		{"root", tag.None, false, Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ix.Lookup(tt.tag, tt.exact))
		})
	}

	got, i := ix.Resolve("A.X", false)
	assert.Equal(t, tag.Tag("A"), got)
	assert.Equal(t, uint32(0), i)
}

func TestIndexer_Delete(t *testing.T) {
	ix := New(nil)
	ix.Add("World.Impact")
	ix.Add("World.Fire")

	i, ok := ix.Delete("World.Impact")
	assert.True(t, ok)
	assert.Equal(t, uint32(1), i)

	assert.Equal(t, Invalid, ix.Lookup("World.Impact", true))
	assert.Equal(t, uint32(0), ix.Lookup("World.Impact.Water", false), "falls back to World")
	assert.Equal(t, uint32(2), ix.Lookup("World.Fire", true), "survivors keep their index")

	assert.True(t, ix.Add("World.Impact"))
	assert.Equal(t, uint32(3), ix.Lookup("World.Impact", true), "indices are never reused")
}

func TestIndexer_RestoreAndOrphans(t *testing.T) {
	reg := tag.NewRegistry("A.B", "X")
	ix := New(reg)

	ix.Restore([]tag.Tag{"A", "A.B", "Q.R", "X.Y"})
	assert.Equal(t, uint32(2), ix.Lookup("Q.R", true))
	assert.Equal(t, []tag.Tag{"Q.R", "X.Y"}, ix.Orphans())

	ix.Reset()
	assert.Zero(t, ix.Len())
	assert.Zero(t, ix.Next())
}

func TestIndexer_Sorted(t *testing.T) {
	ix := New(nil)
	ix.Add("B")
	ix.Add("A.Z")
	assert.Equal(t, []tag.Tag{"A", "A.Z", "B"}, ix.Sorted())
}
