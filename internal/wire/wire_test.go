package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Uint32(4)
	w.String("World.Impact")
	w.Count(3)
	w.Float32(0.5)
	w.Uint64(1 << 40)
	w.Uint8(7)
	w.Bytes([]byte{1, 2, 3})
	w.Trailer()
	require.NoError(t, w.Err())
	assert.Equal(t, int64(buf.Len()), w.Len())

	r := NewReader(&buf)
	assert.Equal(t, uint32(4), r.Uint32())
	assert.Equal(t, "World.Impact", r.String())
	assert.Equal(t, 3, r.Count())
	assert.Equal(t, float32(0.5), r.Float32())
	assert.Equal(t, uint64(1<<40), r.Uint64())
	assert.Equal(t, uint8(7), r.Uint8())
	p := make([]byte, 3)
	r.Bytes(p)
	assert.Equal(t, []byte{1, 2, 3}, p)
	r.Trailer()
	require.NoError(t, r.Err())
}

func TestReader_Corruption(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.String("abc")
	w.Trailer()
	require.NoError(t, w.Err())

	data := buf.Bytes()
	data[4] ^= 0xff

	r := NewReader(bytes.NewReader(data))
	r.String()
	r.Trailer()
	assert.ErrorIs(t, r.Err(), ErrChecksum)
}

func TestReader_Truncated(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 0}))
	r.Uint32()
	assert.ErrorIs(t, r.Err(), io.ErrUnexpectedEOF)
	assert.Empty(t, r.String(), "calls after an error are no-ops")
}

func TestReader_Limits(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Uint32(MaxStringLen + 1)
	w.Int32(-1)

	r := NewReader(bytes.NewReader(buf.Bytes()))
	r.String()
	assert.ErrorIs(t, r.Err(), ErrLimit)

	r = NewReader(bytes.NewReader(buf.Bytes()[4:]))
	r.Count()
	assert.ErrorIs(t, r.Err(), ErrLimit)
}

func TestWriter_Fail(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Uint32(1)
	w.Fail(assert.AnError)
	w.Fail(ErrLimit)
	w.Uint32(2)

	assert.ErrorIs(t, w.Err(), assert.AnError)
	assert.Equal(t, 4, buf.Len())
}
