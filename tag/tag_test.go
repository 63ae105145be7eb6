package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag_Valid(t *testing.T) {
	tests := []struct {
		tag   Tag
		valid bool
	}{
		{"", false},
		{"A", true},
		{"A.B.C", true},
		{".A", false},
		{"A.", false},
		{"A..B", false},
		{"A|B", false},
		{"World.A|B", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.tag.Valid())
		})
	}
}

func TestTag_Hierarchy(t *testing.T) {
	tg := Tag("World.Impact.Earth")

	assert.Equal(t, Tag("World.Impact"), tg.Parent())
	assert.Equal(t, None, Tag("World").Parent())
	assert.True(t, tg.HasParent())
	assert.False(t, Tag("World").HasParent())
	assert.Equal(t, "Earth", tg.Leaf())
	assert.Equal(t, 3, tg.Depth())
	assert.Equal(t, []string{"World", "Impact", "Earth"}, tg.Segments())
	assert.Equal(t, []Tag{"World.Impact", "World"}, tg.Ancestors())

	assert.True(t, tg.IsDescendantOf("World"))
	assert.False(t, Tag("WorldX").IsDescendantOf("World"))
	assert.False(t, Tag("World").IsDescendantOf("World"))
	assert.True(t, Tag("World").MatchesOrDescends("World"))
	assert.Equal(t, tg, Join("World", "Impact", "Earth"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry("A.B.C", "X")

	assert.True(t, r.Exists("A"))
	assert.True(t, r.Exists("A.B"))
	assert.True(t, r.Exists("A.B.C"))
	assert.False(t, r.Exists("A.B.D"))
	assert.False(t, r.Register("bad..tag"))

	r.Unregister("A.B")
	assert.Equal(t, []Tag{"A", "X"}, r.Tags())
}

func TestTree(t *testing.T) {
	tr := NewTree("A.B", "A.A", "C")

	a, ok := tr.Find("A")
	require.True(t, ok)
	ab, ok := tr.Find("A.B")
	require.True(t, ok)

	assert.Equal(t, 4, tr.Len())
	assert.Equal(t, a, tr.Parent(ab))
	assert.True(t, tr.HasValidParent(ab))
	assert.False(t, tr.HasValidParent(a))

	var order []Tag
	for _, n := range tr.Preorder() {
		order = append(order, tr.Tag(n))
	}
	assert.Equal(t, []Tag{"A", "A.A", "A.B", "C"}, order)

	t.Run("walk prunes subtrees", func(t *testing.T) {
		var seen []Tag
		tr.WalkChildren(Root, func(n NodeID) bool {
			seen = append(seen, tr.Tag(n))
			return tr.Tag(n) != "A"
		})
		assert.Equal(t, []Tag{"A", "C"}, seen)
	})

	t.Run("remove subtree", func(t *testing.T) {
		require.True(t, tr.Remove("A"))
		_, ok := tr.Find("A.B")
		assert.False(t, ok)
		assert.Equal(t, 1, tr.Len())
		assert.False(t, tr.Remove("A"))
	})
}
