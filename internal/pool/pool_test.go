package pool

import (
	"errors"
	"testing"

	"github.com/hupe1980/affinity/internal/resource"
	"github.com/hupe1980/affinity/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSchema records destructor calls.
type countingSchema struct {
	*schema.Struct
	destructs int
}

func (c *countingSchema) Destruct(rec []byte) {
	c.destructs++
	c.Struct.Destruct(rec)
}

func newSchema(t *testing.T) *countingSchema {
	t.Helper()
	return &countingSchema{Struct: schema.MustStruct("Damage",
		schema.FieldSpec{Name: "Kind", Kind: schema.KindString, Len: 8, Default: "None"},
		schema.FieldSpec{Name: "Amount", Kind: schema.KindInt32, Default: 7},
	)}
}

func TestNew_Capacity(t *testing.T) {
	s := newSchema(t)

	_, err := New(s, 0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = New(s, MaxChunkCapacity+1)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	p, err := New(s, MaxChunkCapacity)
	require.NoError(t, err)
	assert.False(t, p.Stats().Mapped, "buffer is mapped lazily")
	require.NoError(t, p.Close())
}

func TestPool_AcquireOrder(t *testing.T) {
	s := newSchema(t)
	p, err := New(s, 4)
	require.NoError(t, err)
	defer p.Close()

	for want := range 4 {
		ref, err := p.Acquire()
		require.NoError(t, err)
		assert.Equal(t, uint16(want), ref.Slot)

		v, err := s.Get(p.Get(ref), "Kind")
		require.NoError(t, err)
		assert.Equal(t, "None", v)
	}

	assert.True(t, p.Full())
	_, err = p.Acquire()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestPool_ReleaseResetsToDefault(t *testing.T) {
	s := newSchema(t)
	p, err := New(s, 2)
	require.NoError(t, err)
	defer p.Close()

	a, err := p.Acquire()
	require.NoError(t, err)
	b, err := p.Acquire()
	require.NoError(t, err)

	require.NoError(t, s.Set(p.Get(b), "Kind", "Fire"))
	require.NoError(t, s.Set(p.Get(b), "Amount", 99))
	require.NoError(t, p.Release(b))

	assert.Nil(t, p.Get(b), "released ref must not resolve")
	assert.ErrorIs(t, p.Release(b), ErrStaleHandle)

	c, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, b.Slot, c.Slot)
	assert.NotEqual(t, b.Gen, c.Gen)

	kind, _ := s.Get(p.Get(c), "Kind")
	amount, _ := s.Get(p.Get(c), "Amount")
	assert.Equal(t, "None", kind)
	assert.Equal(t, int32(7), amount)
	assert.NotNil(t, p.Get(a))
}

func TestPool_Compact(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	s := newSchema(t)
	p, err := New(s, 8, WithMemoryAcquirer(rc))
	require.NoError(t, err)
	defer p.Close()

	empty, err := p.Compact()
	require.NoError(t, err)
	assert.True(t, empty, "never mapped")

	a, err := p.Acquire()
	require.NoError(t, err)
	b, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, int64(8*s.Size()), rc.MemoryUsage())

	require.NoError(t, p.Release(a))
	empty, err = p.Compact()
	require.NoError(t, err)
	assert.False(t, empty, "b is still live")

	require.NoError(t, p.Release(b))
	empty, err = p.Compact()
	require.NoError(t, err)
	assert.True(t, empty)
	assert.Zero(t, rc.MemoryUsage())
	assert.Equal(t, Stats{Capacity: 8}, p.Stats())

	c, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, uint16(0), c.Slot)
	assert.Nil(t, p.Get(a), "refs from before compaction stay stale")
}

type failingRegion struct {
	region
}

func (r failingRegion) Close() error {
	_ = r.region.Close()
	return errors.New("munmap failed")
}

func TestPool_CompactUnmapError(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	p, err := New(newSchema(t), 4, WithMemoryAcquirer(rc))
	require.NoError(t, err)
	defer p.Close()

	ref, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.Release(ref))
	p.mapping = failingRegion{p.mapping}

	empty, err := p.Compact()
	assert.True(t, empty)
	assert.ErrorContains(t, err, "munmap failed")
	assert.Zero(t, rc.MemoryUsage())
	assert.False(t, p.Stats().Mapped)
}

func TestPool_MemoryLimit(t *testing.T) {
	s := newSchema(t)
	rc := resource.NewController(resource.Config{MemoryLimitBytes: int64(s.Size())})
	p, err := New(s, 4, WithMemoryAcquirer(rc))
	require.NoError(t, err)

	_, err = p.Acquire()
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	require.NoError(t, p.Close())
}

func TestPool_Close(t *testing.T) {
	t.Run("destructs constructed records", func(t *testing.T) {
		s := newSchema(t)
		p, err := New(s, 4)
		require.NoError(t, err)
		for range 3 {
			_, err := p.Acquire()
			require.NoError(t, err)
		}
		require.NoError(t, p.Close())
		assert.Equal(t, 3, s.destructs)
		require.NoError(t, p.Close())

		_, err = p.Acquire()
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("invalid schema skips destruction", func(t *testing.T) {
		s := newSchema(t)
		p, err := New(s, 4)
		require.NoError(t, err)
		_, err = p.Acquire()
		require.NoError(t, err)

		s.Invalidate()
		require.NoError(t, p.Close())
		assert.Zero(t, s.destructs)
		assert.False(t, p.Stats().Mapped)
	})
}
