// Package pool provides a fixed-capacity allocator for the records of one
// schema.
//
// A Pool owns a single off-heap buffer of at most MaxChunkCapacity records.
// The buffer is mapped on the first Acquire. Slots are handed out in
// increasing order until the buffer has been walked once, then recycled from
// a free list. Every slot carries a generation that is bumped on release, so a
// Ref held past its release resolves to nil instead of aliasing the next
// owner's record.
//
// # Lifecycle
//
//	p, _ := pool.New(damage, 64, pool.WithMemoryAcquirer(rc))
//	ref, _ := p.Acquire()   // maps the buffer, constructs the record
//	rec := p.Get(ref)       // len(rec) == damage.Size()
//	_ = p.Release(ref)      // slot reset to the schema default
//	_, _ = p.Compact()      // unmaps once every issued slot is free
//	_ = p.Close()           // destructs live records, unmaps
//
// A Pool is not safe for concurrent use.
package pool
