package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func mongoNamespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestMongoCache_Mock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("hit", func(mt *mtest.T) {
		c := NewMongoCacheWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mongoNamespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "feature:gadget:core"},
			{Key: "data", Value: []byte("var a;")},
		}))

		got, hit, err := c.Get(ctx, "feature:gadget:core")
		require.NoError(mt, err)
		assert.True(mt, hit)
		assert.Equal(mt, []byte("var a;"), got)
	})

	mt.Run("miss", func(mt *mtest.T) {
		c := NewMongoCacheWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mongoNamespace(mt), mtest.FirstBatch))

		got, hit, err := c.Get(ctx, "missing")
		require.NoError(mt, err)
		assert.False(mt, hit)
		assert.Nil(mt, got)
	})

	mt.Run("expired before the ttl monitor ran", func(mt *mtest.T) {
		c := NewMongoCacheWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mongoNamespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "http:u"},
			{Key: "data", Value: []byte("stale")},
			{Key: "expires_at", Value: time.Now().Add(-time.Minute)},
		}))

		_, hit, err := c.Get(ctx, "http:u")
		require.NoError(mt, err)
		assert.False(mt, hit)
	})

	mt.Run("not yet expired", func(mt *mtest.T) {
		c := NewMongoCacheWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mongoNamespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "http:u"},
			{Key: "data", Value: []byte("fresh")},
			{Key: "expires_at", Value: time.Now().Add(time.Hour)},
		}))

		got, hit, err := c.Get(ctx, "http:u")
		require.NoError(mt, err)
		assert.True(mt, hit)
		assert.Equal(mt, []byte("fresh"), got)
	})

	mt.Run("server error", func(mt *mtest.T) {
		c := NewMongoCacheWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad value",
		}))

		_, hit, err := c.Get(ctx, "k")
		assert.Error(mt, err)
		assert.False(mt, hit)
	})

	mt.Run("set delete clear", func(mt *mtest.T) {
		c := NewMongoCacheWithCollection(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}),
		)

		require.NoError(mt, c.Set(ctx, "feature:gadget:core", []byte("var a;"), 0))
		require.NoError(mt, c.Set(ctx, "http:u", []byte("body"), time.Minute))
		require.NoError(mt, c.Delete(ctx, "http:u"))
		require.NoError(mt, c.Clear(ctx))
		// A wrapped collection belongs to the caller.
		assert.NoError(mt, c.Close())
	})
}

// TestMongoCache_Live runs against a real server when GADGETHOST_TEST_MONGO_URI
// is set, e.g. mongodb://localhost:27017.
func TestMongoCache_Live(t *testing.T) {
	uri := os.Getenv("GADGETHOST_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("GADGETHOST_TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	cfg := DefaultMongoConfig()
	cfg.URI = uri
	cfg.Database = "gadgethost_test"
	c, err := NewMongoCache(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Clear(context.Background())
		_ = c.Close()
	})
	require.NoError(t, c.Clear(ctx))

	require.NoError(t, c.Set(ctx, "feature:gadget:core", []byte("var a;"), 0))
	got, hit, err := c.Get(ctx, "feature:gadget:core")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("var a;"), got)

	require.NoError(t, c.Set(ctx, "http:u", []byte("body"), 50*time.Millisecond))
	_, hit, err = c.Get(ctx, "http:u")
	require.NoError(t, err)
	assert.True(t, hit)
	time.Sleep(100 * time.Millisecond)
	_, hit, err = c.Get(ctx, "http:u")
	require.NoError(t, err)
	assert.False(t, hit, "expired entry should not be served")

	require.NoError(t, c.Delete(ctx, "feature:gadget:core"))
	_, hit, err = c.Get(ctx, "feature:gadget:core")
	require.NoError(t, err)
	assert.False(t, hit)
}
