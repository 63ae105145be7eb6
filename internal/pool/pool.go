package pool

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/affinity/internal/mmap"
	"github.com/hupe1980/affinity/schema"
)

// MaxChunkCapacity is the largest number of records a single Pool holds.
const MaxChunkCapacity = 512

var (
	// ErrExhausted is returned by Acquire when every slot is in use.
	ErrExhausted = errors.New("pool: exhausted")
	// ErrStaleHandle is returned when a Ref no longer names a live record.
	ErrStaleHandle = errors.New("pool: stale handle")
	// ErrInvalidCapacity is returned for capacities outside (0, MaxChunkCapacity].
	ErrInvalidCapacity = errors.New("pool: invalid capacity")
	// ErrClosed is returned when a closed pool is used.
	ErrClosed = errors.New("pool: closed")
)

// MemoryAcquirer reserves the bytes of a pool buffer before it is mapped.
type MemoryAcquirer interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

// Ref names one record inside a Pool. The zero Ref is never issued.
type Ref struct {
	Slot uint16
	Gen  uint32
}

// Stats describes the occupancy of a pool.
type Stats struct {
	Capacity  int
	Issued    int // slots handed out at least once since the buffer was mapped
	Free      int
	Live      int
	Mapped    bool
	BytesHeld int
}

// Option configures a Pool.
type Option func(*Pool)

// WithMemoryAcquirer budgets buffer mappings through acquirer.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(p *Pool) {
		p.acquirer = acquirer
	}
}

// WithLogger sets the logger used for teardown diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// region is the memory mapped for a pool's records.
type region interface {
	Bytes() []byte
	Close() error
}

// Pool is a fixed-capacity record allocator for one schema.
type Pool struct {
	schema   schema.Schema
	capacity int
	stride   int

	mapping region
	data    []byte

	next    int            // next never-issued slot
	free    []uint16       // released slots, reused LIFO
	freeSet *bitset.BitSet // membership of free
	gens    []uint32

	acquirer MemoryAcquirer
	logger   *slog.Logger
	closed   bool
}

// New creates a pool of capacity records of s. No memory is mapped until the
// first Acquire.
func New(s schema.Schema, capacity int, opts ...Option) (*Pool, error) {
	if capacity <= 0 || capacity > MaxChunkCapacity {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	p := &Pool{
		schema:   s,
		capacity: capacity,
		stride:   max(s.Size(), 1),
		freeSet:  bitset.New(uint(capacity)),
		gens:     make([]uint32, capacity),
		logger:   slog.New(slog.DiscardHandler),
	}
	for i := range p.gens {
		p.gens[i] = 1
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Schema returns the record schema.
func (p *Pool) Schema() schema.Schema { return p.schema }

// Capacity returns the number of slots.
func (p *Pool) Capacity() int { return p.capacity }

// Live returns the number of records currently handed out.
func (p *Pool) Live() int { return p.next - len(p.free) }

// Full reports whether Acquire would fail with ErrExhausted.
func (p *Pool) Full() bool { return p.next == p.capacity && len(p.free) == 0 }

// Acquire hands out a default-constructed record.
func (p *Pool) Acquire() (Ref, error) {
	if p.closed {
		return Ref{}, ErrClosed
	}
	if p.Full() {
		return Ref{}, ErrExhausted
	}
	if p.data == nil {
		if err := p.mapBuffer(); err != nil {
			return Ref{}, err
		}
	}

	var slot int
	if p.next < p.capacity {
		slot = p.next
		p.next++
		p.schema.Construct(p.record(slot))
	} else {
		// Released slots were reset to the default on release.
		slot = int(p.free[len(p.free)-1])
		p.free = p.free[:len(p.free)-1]
		p.freeSet.Clear(uint(slot))
	}

	return Ref{Slot: uint16(slot), Gen: p.gens[slot]}, nil //nolint:gosec // slot < MaxChunkCapacity
}

// Release returns a record to the free list and resets it to the default.
func (p *Pool) Release(ref Ref) error {
	if !p.live(ref) {
		return fmt.Errorf("%w: slot %d gen %d", ErrStaleHandle, ref.Slot, ref.Gen)
	}

	slot := int(ref.Slot)
	rec := p.record(slot)
	p.schema.Destruct(rec)
	p.schema.Construct(rec)

	p.gens[slot]++
	if p.gens[slot] == 0 {
		p.gens[slot] = 1
	}
	p.free = append(p.free, ref.Slot)
	p.freeSet.Set(uint(slot))
	return nil
}

// Get resolves ref to its record bytes, or nil if ref is not live.
func (p *Pool) Get(ref Ref) []byte {
	if !p.live(ref) {
		return nil
	}
	return p.record(int(ref.Slot))
}

// Compact unmaps the buffer when nothing was ever issued or every issued slot
// is free. It reports whether the pool holds no memory afterwards. The pool
// is emptied even when unmapping fails; the error is returned.
func (p *Pool) Compact() (bool, error) {
	if p.data == nil {
		return true, nil
	}
	if p.next != 0 && len(p.free) != p.next {
		return false, nil
	}

	if p.schema.Valid() {
		for slot := range p.next {
			p.schema.Destruct(p.record(slot))
		}
	}
	err := p.unmapBuffer()
	p.next = 0
	p.free = p.free[:0]
	p.freeSet.ClearAll()
	if err != nil {
		return true, fmt.Errorf("pool %s: unmap: %w", p.schema.Name(), err)
	}
	return true, nil
}

// Close destructs every constructed record and unmaps the buffer. When the
// schema descriptor was torn down first, records are freed without being
// destructed.
func (p *Pool) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.data == nil {
		return nil
	}

	if p.schema.Valid() {
		for slot := range p.next {
			p.schema.Destruct(p.record(slot))
		}
	} else {
		p.logger.Info("schema destroyed before pool teardown; records freed without destruction",
			slog.String("schema", p.schema.Name()),
			slog.Int("live", p.Live()))
	}

	return p.unmapBuffer()
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	st := Stats{
		Capacity: p.capacity,
		Issued:   p.next,
		Free:     len(p.free),
		Live:     p.Live(),
		Mapped:   p.data != nil,
	}
	if st.Mapped {
		st.BytesHeld = len(p.data)
	}
	return st
}

func (p *Pool) live(ref Ref) bool {
	slot := int(ref.Slot)
	if p.data == nil || slot >= p.next {
		return false
	}
	if p.freeSet.Test(uint(slot)) {
		return false
	}
	return p.gens[slot] == ref.Gen
}

func (p *Pool) record(slot int) []byte {
	off := slot * p.stride
	return p.data[off : off+p.stride : off+p.stride]
}

func (p *Pool) mapBuffer() error {
	size := p.capacity * p.stride

	if p.acquirer != nil {
		if err := p.acquirer.AcquireMemory(int64(size)); err != nil {
			return fmt.Errorf("pool %s: reserve %d bytes: %w", p.schema.Name(), size, err)
		}
	}

	m, err := mmap.MapAnon(size)
	if err != nil {
		if p.acquirer != nil {
			p.acquirer.ReleaseMemory(int64(size))
		}
		return fmt.Errorf("pool %s: map %d bytes: %w", p.schema.Name(), size, err)
	}

	p.mapping = m
	p.data = m.Bytes()
	return nil
}

func (p *Pool) unmapBuffer() error {
	size := len(p.data)
	err := p.mapping.Close()
	p.mapping = nil
	p.data = nil
	if p.acquirer != nil {
		p.acquirer.ReleaseMemory(int64(size))
	}
	return err
}
