package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// MaxDecompressedSize bounds the output of Decompress.
const MaxDecompressedSize = 1 << 30

// ErrCorrupt is returned when compressed data cannot be decoded.
var ErrCorrupt = errors.New("codec: corrupt compressed data")

// Compressor compresses whole blobs.
// Implementations must be safe for concurrent use.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
	Name() string
}

// CompressorByName returns a built-in compressor by its stable name.
func CompressorByName(name string) (Compressor, bool) {
	switch name {
	case "none", "":
		return None(), true
	case "zstd":
		return Zstd(), true
	case "lz4":
		return LZ4(), true
	default:
		return nil, false
	}
}

// CompressorNames lists the names accepted by CompressorByName.
func CompressorNames() []string { return []string{"none", "lz4", "zstd"} }

type none struct{}

// None returns a compressor that copies data unchanged.
func None() Compressor { return none{} }

func (none) Compress(src []byte) ([]byte, error) { return append([]byte(nil), src...), nil }

func (none) Decompress(src []byte) ([]byte, error) {
	if len(src) > MaxDecompressedSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit", ErrCorrupt, len(src))
	}
	return append([]byte(nil), src...), nil
}

func (none) Name() string { return "none" }

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecompressedSize))
}

type zstdCompressor struct{}

// Zstd returns a zstd compressor (better ratio, good for archived tables).
func Zstd() Compressor { return zstdCompressor{} }

func (zstdCompressor) Compress(src []byte) ([]byte, error) {
	enc, err := getZstdEncoder()
	if err != nil {
		return nil, err
	}
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(src, nil), nil
}

func (zstdCompressor) Decompress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, err
	}
	defer zstdDecoderPool.Put(dec)
	out, err := dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return out, nil
}

func (zstdCompressor) Name() string { return "zstd" }

// lz4 block header: [UncompressedSize uint32][CompressedSize uint32].
// A CompressedSize of 0 means the block is stored uncompressed.
const blockHeaderSize = 8

type lz4Compressor struct{}

// LZ4 returns an LZ4 block compressor (fast, good for frequently saved tables).
func LZ4() Compressor { return lz4Compressor{} }

func (lz4Compressor) Compress(src []byte) ([]byte, error) {
	out := make([]byte, blockHeaderSize+lz4.CompressBlockBound(len(src)))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(src)))

	n, err := lz4.CompressBlock(src, out[blockHeaderSize:], nil)
	if err != nil {
		return nil, err
	}
	if n == 0 || n >= len(src) {
		// Incompressible
		binary.LittleEndian.PutUint32(out[4:], 0)
		n = copy(out[blockHeaderSize:], src)
		return out[:blockHeaderSize+n], nil
	}
	binary.LittleEndian.PutUint32(out[4:], uint32(n))
	return out[:blockHeaderSize+n], nil
}

func (lz4Compressor) Decompress(src []byte) ([]byte, error) {
	if len(src) < blockHeaderSize {
		return nil, fmt.Errorf("%w: block too small for header", ErrCorrupt)
	}
	size := binary.LittleEndian.Uint32(src[0:])
	compressed := binary.LittleEndian.Uint32(src[4:])
	if size > MaxDecompressedSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit", ErrCorrupt, size)
	}
	body := src[blockHeaderSize:]

	if compressed == 0 {
		if uint32(len(body)) != size {
			return nil, fmt.Errorf("%w: block data too small", ErrCorrupt)
		}
		return append([]byte(nil), body...), nil
	}
	if uint32(len(body)) != compressed {
		return nil, fmt.Errorf("%w: compressed block data too small", ErrCorrupt)
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(body, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if uint32(n) != size {
		return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
	}
	return out, nil
}

func (lz4Compressor) Name() string { return "lz4" }
