package affinity

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/affinity/blobstore"
	"github.com/hupe1980/affinity/codec"
	"github.com/hupe1980/affinity/internal/conv"
	"github.com/hupe1980/affinity/internal/resource"
	"github.com/hupe1980/affinity/internal/wire"
)

// envelopeMagic starts every blob written by SaveTo.
var envelopeMagic = [4]byte{'A', 'F', 'T', 'Z'}

// Envelope describes a blob written by SaveTo.
type Envelope struct {
	Compressor string
	RawSize    uint64
	StoredSize uint64
}

// SaveTo serializes the table, compresses it with c and writes it to store
// under name. A nil compressor stores the stream uncompressed.
func (t *Table) SaveTo(ctx context.Context, store blobstore.Store, name string, c codec.Compressor) error {
	if c == nil {
		c = codec.None()
	}

	var raw bytes.Buffer
	if err := t.Save(&raw); err != nil {
		return err
	}
	packed, err := c.Compress(raw.Bytes())
	if err != nil {
		return fmt.Errorf("compress %s: %w", name, err)
	}

	var blob bytes.Buffer
	enc := wire.NewWriter(resource.NewRateLimitedWriter(ctx, &blob, t.opts.resources))
	enc.Bytes(envelopeMagic[:])
	enc.String(c.Name())
	enc.Uint64(uint64(raw.Len()))
	enc.Uint64(uint64(len(packed)))
	enc.Bytes(packed)
	enc.Trailer()
	if err := enc.Err(); err != nil {
		return err
	}

	if err := store.Put(ctx, name, blob.Bytes()); err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	t.logger.DebugContext(ctx, "table stored",
		"blob", name, "compressor", c.Name(), "raw", raw.Len(), "stored", blob.Len())
	return nil
}

// LoadFrom reads name from store and loads it into the table. Blobs written
// by SaveTo and bare Save streams are both accepted.
func (t *Table) LoadFrom(ctx context.Context, store blobstore.Store, name string) error {
	data, err := store.Get(ctx, name)
	if err != nil {
		return err
	}
	raw, env, err := OpenEnvelope(resource.NewRateLimitedReader(ctx, bytes.NewReader(data), t.opts.resources))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	t.logger.DebugContext(ctx, "table fetched",
		"blob", name, "compressor", env.Compressor, "raw", env.RawSize, "stored", env.StoredSize)
	return t.Load(bytes.NewReader(raw))
}

// OpenEnvelope reads a blob written by SaveTo and returns the decompressed
// table stream. A stream without envelope is returned unchanged with the
// "none" compressor.
func OpenEnvelope(r io.Reader) ([]byte, Envelope, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Envelope{}, err
	}
	if !bytes.HasPrefix(data, envelopeMagic[:]) {
		n := uint64(len(data))
		return data, Envelope{Compressor: codec.None().Name(), RawSize: n, StoredSize: n}, nil
	}

	dec := wire.NewReader(bytes.NewReader(data))
	var magic [4]byte
	dec.Bytes(magic[:])
	env := Envelope{Compressor: dec.String(), RawSize: dec.Uint64(), StoredSize: dec.Uint64()}
	if err := dec.Err(); err != nil {
		return nil, env, fmt.Errorf("%w: envelope header: %w", ErrCorrupt, err)
	}
	if env.StoredSize > uint64(len(data)) || env.RawSize > codec.MaxDecompressedSize {
		return nil, env, fmt.Errorf("%w: envelope sizes %d/%d", ErrCorrupt, env.StoredSize, env.RawSize)
	}
	stored, err := conv.Uint64ToInt(env.StoredSize)
	if err != nil {
		return nil, env, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	packed := make([]byte, stored)
	dec.Bytes(packed)
	dec.Trailer()
	if err := dec.Err(); err != nil {
		return nil, env, fmt.Errorf("%w: envelope: %w", ErrCorrupt, err)
	}

	c, ok := codec.CompressorByName(env.Compressor)
	if !ok {
		return nil, env, fmt.Errorf("%w: compressor %q", ErrUnsupportedFormat, env.Compressor)
	}
	raw, err := c.Decompress(packed)
	if err != nil {
		return nil, env, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if uint64(len(raw)) != env.RawSize {
		return nil, env, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrCorrupt, len(raw), env.RawSize)
	}
	return raw, env, nil
}
