// Package resource governs the shared budgets of a process that hosts many
// tables.
//
//   - Memory: a hard cap on off-heap bytes held by record pool chunks
//     (non-blocking, fail-fast)
//   - Workers: a cap on concurrent background reads such as blob prefetches
//   - IO: a token bucket throttling blob uploads and downloads
//
// # Memory
//
// Pools reserve a chunk's byte size before mapping it and release it after
// unmapping:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 64 << 20,
//	})
//
//	if err := rc.AcquireMemory(chunkBytes); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(chunkBytes)
//
// # Workers
//
// blobstore.CachingStore.Prefetch holds one worker slot per blob it reads:
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
//
// # IO
//
//	w := resource.NewRateLimitedWriter(ctx, dst, rc)
//	r := resource.NewRateLimitedReader(ctx, src, rc)
//
// # Nil Safety
//
// Every method accepts a nil *Controller and becomes a no-op, so callers can
// leave limits unset without nil checks.
package resource
