package s3

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/affinity/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommitStore(s3c *memS3Client, ddb *mockDDBClient, baseURI string) *CommitStore {
	return NewCommitStore(NewStore(s3c, "test-bucket", "test/"), ddb, "affinity-commits", baseURI)
}

func TestCommitStore_FirstCommit(t *testing.T) {
	ctx := context.Background()
	store := newTestCommitStore(newMemS3Client(), newMockDDBClient(), "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, "weapons.aft", []byte("v1")))

	data, err := store.Get(ctx, "weapons.aft")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestCommitStore_MultipleCommits(t *testing.T) {
	ctx := context.Background()
	s3c := newMemS3Client()
	store := newTestCommitStore(s3c, newMockDDBClient(), "s3://test-bucket/test/")

	for i := 1; i <= 11; i++ {
		require.NoError(t, store.Put(ctx, "weapons.aft", []byte(fmt.Sprintf("v%d", i))))
	}

	data, err := store.Get(ctx, "weapons.aft")
	require.NoError(t, err)
	assert.Equal(t, "v11", string(data))

	versions, err := store.Versions(ctx, "weapons.aft")
	require.NoError(t, err)
	assert.Len(t, versions, 11)
	assert.Equal(t, uint64(11), versions[len(versions)-1])

	old, err := store.GetVersion(ctx, "weapons.aft", 2)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(old))

	_, err = store.GetVersion(ctx, "weapons.aft", 99)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"weapons.aft"}, names)
}

func TestCommitStore_ConflictRemovesObject(t *testing.T) {
	ctx := context.Background()
	s3c := newMemS3Client()
	ddb := newMockDDBClient()
	store := newTestCommitStore(s3c, ddb, "s3://test-bucket/test/")
	rival := newTestCommitStore(s3c, ddb, "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, "t.aft", []byte("v1")))

	// The rival commits version 2 between our read of the head and our commit.
	once := sync.Once{}
	ddb.beforePut = func() {
		once.Do(func() {
			ddb.beforePut = nil
			require.NoError(t, rival.Put(ctx, "t.aft", []byte("rival")))
		})
	}

	err := store.Put(ctx, "t.aft", []byte("mine"))
	require.ErrorIs(t, err, ErrConcurrentModification)

	data, err := store.Get(ctx, "t.aft")
	require.NoError(t, err)
	assert.Equal(t, "rival", string(data))
	assert.Len(t, s3c.keys(), 2)
}

func TestCommitStore_NotFoundBeforeCommit(t *testing.T) {
	store := newTestCommitStore(newMemS3Client(), newMockDDBClient(), "s3://test-bucket/test/")

	_, err := store.Get(context.Background(), "t.aft")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestCommitStore_Delete(t *testing.T) {
	ctx := context.Background()
	s3c := newMemS3Client()
	store := newTestCommitStore(s3c, newMockDDBClient(), "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, "t.aft", []byte("v1")))
	require.NoError(t, store.Put(ctx, "t.aft", []byte("v2")))
	require.NoError(t, store.Delete(ctx, "t.aft"))

	_, err := store.Get(ctx, "t.aft")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	assert.Empty(t, s3c.keys())
	require.NoError(t, store.Delete(ctx, "t.aft"))
}

func TestCommitStore_IsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	s3c := newMemS3Client()
	ddb := newMockDDBClient()

	store1 := NewCommitStore(NewStore(s3c, "bucket", "a/"), ddb, "affinity-commits", "s3://bucket/a/")
	store2 := NewCommitStore(NewStore(s3c, "bucket", "b/"), ddb, "affinity-commits", "s3://bucket/b/")

	require.NoError(t, store1.Put(ctx, "t.aft", []byte("A")))
	require.NoError(t, store2.Put(ctx, "t.aft", []byte("B")))

	data, err := store1.Get(ctx, "t.aft")
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))

	data, err = store2.Get(ctx, "t.aft")
	require.NoError(t, err)
	assert.Equal(t, "B", string(data))
}
