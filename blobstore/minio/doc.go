// Package minio stores table blobs in MinIO or any other S3-compatible
// server through the minio-go client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := minioblob.NewStore(client, "tables", "weapons/")
//	err = table.SaveTo(ctx, store, "damage.aft", codec.LZ4())
//
// Objects are written with a single PutObject call, so readers never see a
// partially written table. Missing objects map to blobstore.ErrNotFound.
package minio
