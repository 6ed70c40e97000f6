package mongodb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/minigrant/domain"
)

// setupIdentityRepoTest connects to a throwaway database per test run.
func setupIdentityRepoTest(t *testing.T) (*IdentityRepositoryMongo, func()) {
	t.Helper()

	mongoURI := os.Getenv("TEST_MONGO_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration tests: TEST_MONGO_URI not set")
	}
	dbName := fmt.Sprintf("test_minigrant_identity_%d", time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	c, err := mongo.Connect(options.Client().ApplyURI(mongoURI).SetConnectTimeout(10 * time.Second))
	require.NoError(t, err, "mongo.Connect failed")
	require.NoError(t, c.Ping(ctx, nil), "mongo.Ping failed")

	db := c.Database(dbName)
	repo, err := NewIdentityRepositoryMongo(ctx, db)
	require.NoError(t, err, "NewIdentityRepositoryMongo failed")

	cleanup := func() {
		cleanupCtx := context.Background()
		if dropErr := db.Drop(cleanupCtx); dropErr != nil {
			t.Logf("Warning: failed to drop database %s: %v", dbName, dropErr)
		}
		if discErr := c.Disconnect(cleanupCtx); discErr != nil {
			t.Logf("Warning: failed to disconnect test client: %v", discErr)
		}
	}
	return repo, cleanup
}

func wechatUpsert(openID string) domain.IdentityUpsert {
	return domain.IdentityUpsert{
		Provider: domain.ProviderWeChat,
		OpenID:   openID,
		Nickname: "nick-" + openID,
		RawData:  map[string]any{"openId": openID},
	}
}

func TestIdentityRepository_UpsertIdempotent(t *testing.T) {
	repo, cleanup := setupIdentityRepoTest(t)
	defer cleanup()
	ctx := context.Background()

	first, err := repo.Upsert(ctx, wechatUpsert("open-1"))
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	attrs := wechatUpsert("open-1")
	attrs.Nickname = "renamed"
	attrs.Avatar = "https://example.com/a.png"
	second, err := repo.Upsert(ctx, attrs)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "upsert must reuse the existing document")
	assert.Equal(t, "renamed", second.Nickname, "second call's values win")
	assert.Equal(t, "https://example.com/a.png", second.Avatar)
	assert.Equal(t, first.CreatedAt.Truncate(time.Millisecond), second.CreatedAt.Truncate(time.Millisecond))

	found, err := repo.FindByOpenID(ctx, domain.ProviderWeChat, "open-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestIdentityRepository_UpsertKeepsUserLink(t *testing.T) {
	repo, cleanup := setupIdentityRepoTest(t)
	defer cleanup()
	ctx := context.Background()

	created, err := repo.Upsert(ctx, wechatUpsert("open-2"))
	require.NoError(t, err)
	require.NoError(t, repo.Connect(ctx, created.ID, "user-42"))

	// A refresh without a user id must not clear the link.
	refreshed, err := repo.Upsert(ctx, wechatUpsert("open-2"))
	require.NoError(t, err)
	assert.Equal(t, "user-42", refreshed.UserID)
}

func TestIdentityRepository_ConnectDisconnect(t *testing.T) {
	repo, cleanup := setupIdentityRepoTest(t)
	defer cleanup()
	ctx := context.Background()

	created, err := repo.Upsert(ctx, wechatUpsert("open-3"))
	require.NoError(t, err)

	require.NoError(t, repo.Connect(ctx, created.ID, "user-1"))
	// Idempotent for the same user.
	require.NoError(t, repo.Connect(ctx, created.ID, "user-1"))
	// Refused for a different user.
	assert.ErrorIs(t, repo.Connect(ctx, created.ID, "user-2"), domain.ErrIdentityLinked)

	require.NoError(t, repo.Disconnect(ctx, created.ID))
	found, err := repo.FindByOpenID(ctx, domain.ProviderWeChat, "open-3")
	require.NoError(t, err)
	assert.False(t, found.Linked())

	// Relink is allowed after an explicit disconnect.
	require.NoError(t, repo.Connect(ctx, created.ID, "user-2"))

	assert.ErrorIs(t, repo.Connect(ctx, "missing-id", "user-1"), domain.ErrIdentityNotFound)
	assert.ErrorIs(t, repo.Disconnect(ctx, "missing-id"), domain.ErrIdentityNotFound)
}

func TestIdentityRepository_FindByUnionID(t *testing.T) {
	repo, cleanup := setupIdentityRepoTest(t)
	defer cleanup()
	ctx := context.Background()

	attrs := wechatUpsert("open-4")
	attrs.UnionID = "union-x"
	_, err := repo.Upsert(ctx, attrs)
	require.NoError(t, err)

	found, err := repo.FindByUnionID(ctx, domain.ProviderWeChat, "union-x")
	require.NoError(t, err)
	assert.Equal(t, "open-4", found.OpenID)

	// Same union id on another provider must not match.
	_, err = repo.FindByUnionID(ctx, domain.ProviderQQ, "union-x")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

	_, err = repo.FindByUnionID(ctx, domain.ProviderWeChat, "")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func TestIdentityRepository_ConcurrentFirstLogin(t *testing.T) {
	repo, cleanup := setupIdentityRepoTest(t)
	defer cleanup()
	ctx := context.Background()

	const workers = 16
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity, err := repo.Upsert(ctx, wechatUpsert("open-race"))
			if err == nil {
				ids[i] = identity.ID
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i], "worker %d", i)
	}
	for i := 1; i < workers; i++ {
		assert.Equal(t, ids[0], ids[i], "all workers must observe the same document")
	}

	count, err := repo.collection.CountDocuments(ctx, bson.M{"open_id": "open-race"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestIdentityRepository_DeleteByUserID(t *testing.T) {
	repo, cleanup := setupIdentityRepoTest(t)
	defer cleanup()
	ctx := context.Background()

	for _, openID := range []string{"open-5", "open-6"} {
		created, err := repo.Upsert(ctx, wechatUpsert(openID))
		require.NoError(t, err)
		require.NoError(t, repo.Connect(ctx, created.ID, "user-del"))
	}

	deleted, err := repo.DeleteByUserID(ctx, "user-del")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	_, err = repo.FindByOpenID(ctx, domain.ProviderWeChat, "open-5")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}
