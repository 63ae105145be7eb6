// Package blobstore provides storage abstraction for serialized tables.
//
// A Store holds whole, named blobs. Tables are written and read in one piece,
// so stores expose Get and Put rather than ranged readers.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with atomic replace
//   - MemoryStore: in-memory, for tests
//   - CachingStore: LRU read cache in front of any Store
//   - s3.Store / s3.CommitStore: Amazon S3, optionally with DynamoDB versioning
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
// Implement the Store interface to support custom storage backends:
//
//	type Store interface {
//	    Get(ctx, name) ([]byte, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
