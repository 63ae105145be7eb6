package blobstore

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/affinity/internal/resource"
	"golang.org/x/sync/errgroup"
)

// CachingStore wraps a Store and keeps recently read blobs in an LRU cache
// bounded by total bytes. Writes and deletes go through to the inner store
// and invalidate the cached copy.
type CachingStore struct {
	inner    Store
	capacity int64
	rc       *resource.Controller

	mu        sync.Mutex
	size      int64
	items     map[string]*list.Element
	evictList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

const prefetchConcurrency = 8

type entry struct {
	name  string
	value []byte
}

// NewCachingStore creates a CachingStore holding at most capacity bytes.
// If rc is provided, it will be used to track memory usage.
func NewCachingStore(inner Store, capacity int64, rc *resource.Controller) *CachingStore {
	return &CachingStore{
		inner:     inner,
		capacity:  capacity,
		rc:        rc,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Get returns a blob from the cache, reading through on a miss.
func (s *CachingStore) Get(ctx context.Context, name string) ([]byte, error) {
	if b, ok := s.lookup(name); ok {
		return slices.Clone(b), nil
	}
	b, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	s.set(name, slices.Clone(b))
	return b, nil
}

// Put writes through and invalidates the cached copy.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Delete deletes through and invalidates the cached copy.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List is not cached.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Prefetch reads names concurrently into the cache. Each read holds a worker
// slot of the resource controller.
func (s *CachingStore) Prefetch(ctx context.Context, names ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)
	for _, name := range names {
		g.Go(func() error {
			if err := s.rc.AcquireWorker(ctx); err != nil {
				return err
			}
			defer s.rc.ReleaseWorker()

			_, err := s.Get(ctx, name)
			return err
		})
	}
	return g.Wait()
}

// Stats returns cache hits and misses.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Size returns the current size of the cache in bytes.
func (s *CachingStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *CachingStore) lookup(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.items[name]; ok {
		s.hits.Add(1)
		s.evictList.MoveToFront(ent)
		return ent.Value.(*entry).value, true
	}
	s.misses.Add(1)
	return nil, false
}

func (s *CachingStore) set(name string, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.items[name]; ok {
		s.removeElement(ent)
	}

	itemSize := int64(len(b))
	// If item is larger than capacity, don't cache
	if itemSize > s.capacity {
		return
	}

	// Evict to make space in local capacity first
	for s.size+itemSize > s.capacity {
		ent := s.evictList.Back()
		if ent == nil {
			break
		}
		s.removeElement(ent)
	}

	// If the global budget says no, don't cache.
	if s.rc != nil && s.rc.AcquireMemory(itemSize) != nil {
		return
	}

	s.items[name] = s.evictList.PushFront(&entry{name: name, value: b})
	s.size += itemSize
}

func (s *CachingStore) invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.items[name]; ok {
		s.removeElement(ent)
	}
}

func (s *CachingStore) removeElement(e *list.Element) {
	s.evictList.Remove(e)
	kv := e.Value.(*entry)
	delete(s.items, kv.name)
	itemSize := int64(len(kv.value))
	s.size -= itemSize
	if s.rc != nil {
		s.rc.ReleaseMemory(itemSize)
	}
}
