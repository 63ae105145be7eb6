package codec

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecs_Agree(t *testing.T) {
	doc := benchDocument()
	a := MustMarshal(JSON{}, doc)
	b := MustMarshal(GoJSON{}, doc)
	assert.JSONEq(t, string(a), string(b))

	var back []benchCell
	require.NoError(t, GoJSON{}.Unmarshal(a, &back))
	assert.Equal(t, doc, back)

	appended, err := GoJSON{}.Append([]byte("x"), doc)
	require.NoError(t, err)
	assert.Equal(t, byte('x'), appended[0])
}

func TestCompressors(t *testing.T) {
	compressible := bytes.Repeat([]byte("Weapon.Sword|Enemy.Orc "), 512)
	random := make([]byte, 4096)
	_, _ = rand.Read(random)

	for _, name := range CompressorNames() {
		c, ok := CompressorByName(name)
		require.True(t, ok)
		require.Equal(t, name, c.Name())

		t.Run(name, func(t *testing.T) {
			for _, data := range [][]byte{compressible, random, {}} {
				packed, err := c.Compress(data)
				require.NoError(t, err)
				got, err := c.Decompress(packed)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(got))
				assert.True(t, bytes.Equal(data, got))
			}

			if name != "none" {
				packed, err := c.Compress(compressible)
				require.NoError(t, err)
				assert.Less(t, len(packed), len(compressible))
			}
		})
	}

	_, ok := CompressorByName("brotli")
	assert.False(t, ok)
}

func TestLZ4_Corrupt(t *testing.T) {
	c := LZ4()
	_, err := c.Decompress([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupt)

	packed, err := c.Compress(bytes.Repeat([]byte("abc"), 100))
	require.NoError(t, err)
	_, err = c.Decompress(packed[:len(packed)-3])
	assert.ErrorIs(t, err, ErrCorrupt)

	huge := make([]byte, blockHeaderSize)
	huge[3] = 0x80
	_, err = c.Decompress(huge)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestZstd_Corrupt(t *testing.T) {
	_, err := Zstd().Decompress([]byte("definitely not zstd"))
	assert.ErrorIs(t, err, ErrCorrupt)
}
