// Package s3 stores serialized tables in Amazon S3.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "tables/")
//
//	err = table.SaveTo(ctx, store, "weapons.aft", codec.Zstd())
//
// S3 offers no compare-and-swap on plain objects. CommitStore adds a DynamoDB
// commit log so several writers can publish versions of the same table
// without losing each other's updates:
//
//	commits := s3.NewCommitStore(store, dynamodb.NewFromConfig(cfg), "affinity-commits", "s3://my-bucket/tables/")
//
// # Features
//
//   - Multipart uploads for large tables
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - Versioned commits with conflict detection
package s3
