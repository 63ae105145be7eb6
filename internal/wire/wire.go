// Package wire reads and writes the little-endian primitives of the table
// file format over a stream, keeping a running CRC32 of every byte.
//
// Both Writer and Reader latch the first error: later calls are no-ops and
// Err reports it, so encoders can be written as straight-line code and check
// once at the end.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"
)

// MaxStringLen bounds decoded strings so a corrupt length cannot trigger a
// huge allocation.
const MaxStringLen = 1 << 20

var (
	// ErrChecksum is returned when a stream's trailer does not match its content.
	ErrChecksum = errors.New("wire: checksum mismatch")
	// ErrLimit is returned for lengths and counts outside the encodable range.
	ErrLimit = errors.New("wire: length out of range")
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// Writer encodes primitives to an io.Writer.
type Writer struct {
	w       io.Writer
	hash    hash.Hash32
	scratch [8]byte
	n       int64
	err     error
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, hash: crc32.New(crcTable)}
}

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// Fail latches err unless an earlier error is already set.
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Len returns the number of bytes written.
func (w *Writer) Len() int64 { return w.n }

// Sum returns the CRC32 of everything written so far.
func (w *Writer) Sum() uint32 { return w.hash.Sum32() }

// Bytes writes p verbatim.
func (w *Writer) Bytes(p []byte) {
	if w.err != nil {
		return
	}
	w.hash.Write(p) //nolint:errcheck // hash writes never fail
	n, err := w.w.Write(p)
	w.n += int64(n)
	w.err = err
}

// Uint8 writes one byte.
func (w *Writer) Uint8(v uint8) {
	w.scratch[0] = v
	w.Bytes(w.scratch[:1])
}

// Uint32 writes v.
func (w *Writer) Uint32(v uint32) {
	binary.LittleEndian.PutUint32(w.scratch[:4], v)
	w.Bytes(w.scratch[:4])
}

// Int32 writes v.
func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) } //nolint:gosec // bit reinterpretation

// Uint64 writes v.
func (w *Writer) Uint64(v uint64) {
	binary.LittleEndian.PutUint64(w.scratch[:8], v)
	w.Bytes(w.scratch[:8])
}

// Float32 writes v.
func (w *Writer) Float32(v float32) { w.Uint32(math.Float32bits(v)) }

// String writes a uint32 length followed by the bytes of s.
func (w *Writer) String(s string) {
	if w.err == nil && len(s) > MaxStringLen {
		w.err = fmt.Errorf("%w: string of %d bytes", ErrLimit, len(s))
		return
	}
	w.Uint32(uint32(len(s))) //nolint:gosec // bounded above
	w.Bytes([]byte(s))
}

// Count writes a non-negative collection length.
func (w *Writer) Count(n int) {
	if w.err == nil && (n < 0 || n > math.MaxInt32) {
		w.err = fmt.Errorf("%w: count %d", ErrLimit, n)
		return
	}
	w.Int32(int32(n)) //nolint:gosec // bounded above
}

// Trailer writes the CRC32 of everything written before it.
func (w *Writer) Trailer() {
	sum := w.Sum()
	w.Uint32(sum)
}

// Reader decodes primitives from an io.Reader.
type Reader struct {
	r       io.Reader
	hash    hash.Hash32
	scratch [8]byte
	err     error
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, hash: crc32.New(crcTable)}
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// Fail latches err unless an earlier error is already set.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Sum returns the CRC32 of everything read so far.
func (r *Reader) Sum() uint32 { return r.hash.Sum32() }

// Bytes fills p.
func (r *Reader) Bytes(p []byte) {
	if r.err != nil {
		clear(p)
		return
	}
	n, err := io.ReadFull(r.r, p)
	r.hash.Write(p[:n]) //nolint:errcheck // hash writes never fail
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
	}
}

// Uint8 reads one byte.
func (r *Reader) Uint8() uint8 {
	r.Bytes(r.scratch[:1])
	return r.scratch[0]
}

// Uint32 reads a uint32.
func (r *Reader) Uint32() uint32 {
	r.Bytes(r.scratch[:4])
	return binary.LittleEndian.Uint32(r.scratch[:4])
}

// Int32 reads an int32.
func (r *Reader) Int32() int32 { return int32(r.Uint32()) } //nolint:gosec // bit reinterpretation

// Uint64 reads a uint64.
func (r *Reader) Uint64() uint64 {
	r.Bytes(r.scratch[:8])
	return binary.LittleEndian.Uint64(r.scratch[:8])
}

// Float32 reads a float32.
func (r *Reader) Float32() float32 { return math.Float32frombits(r.Uint32()) }

// String reads a length-prefixed string.
func (r *Reader) String() string {
	n := r.Uint32()
	if r.err != nil {
		return ""
	}
	if n > MaxStringLen {
		r.err = fmt.Errorf("%w: string of %d bytes", ErrLimit, n)
		return ""
	}
	buf := make([]byte, n)
	r.Bytes(buf)
	return string(buf)
}

// Count reads a collection length written by Writer.Count.
func (r *Reader) Count() int {
	n := r.Int32()
	if r.err == nil && n < 0 {
		r.err = fmt.Errorf("%w: count %d", ErrLimit, n)
		return 0
	}
	return int(n)
}

// Trailer reads a CRC32 and compares it to the sum of the preceding bytes.
func (r *Reader) Trailer() {
	want := r.Sum()
	got := r.Uint32()
	if r.err == nil && got != want {
		r.err = fmt.Errorf("%w: expected 0x%08x, got 0x%08x", ErrChecksum, want, got)
	}
}
