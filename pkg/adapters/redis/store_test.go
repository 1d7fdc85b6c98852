package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/webflow/pkg/adapters/redis"
	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/ports"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunExecutionStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)
	now := time.Now()
	store := redis.NewFromClient(client,
		redis.WithTTL(time.Second),
		redis.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()
	snap := &domain.Snapshot{Key: "exec-ttl", FlowID: "F", Status: domain.ExecutionActive}

	require.NoError(t, store.Save(ctx, "exec-ttl", snap))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "exec-ttl")

	mr.FastForward(2 * time.Second)
	now = now.Add(2 * time.Second)

	_, err = store.Load(ctx, "exec-ttl")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)

	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys, "expired entries are pruned from the index")
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "my-exec", &domain.Snapshot{FlowID: "F"}))

	assert.True(t, mr.Exists("custom:app:my-exec"))
	assert.True(t, mr.Exists("custom:app:index"))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"my-exec"}, keys)
}

func TestRedisStore_SummariesSkipVanishedKeys(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a", &domain.Snapshot{Key: "a", FlowID: "F", Status: domain.ExecutionEnded}))
	require.NoError(t, store.Save(ctx, "b", &domain.Snapshot{Key: "b", FlowID: "G", Status: domain.ExecutionActive}))
	mr.Del(redis.DefaultPrefix + "b")

	sums, err := store.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "a", sums[0].Key)
	assert.Equal(t, domain.ExecutionEnded, sums[0].Status)
}
