package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setupRedis(t)
	ports.RunStatusStoreContract(t, redis.NewFromClient(client))
}

func TestRedisRepository_Contract(t *testing.T) {
	_, client := setupRedis(t)
	ports.RunConfigRepositoryContract(t, redis.NewRepository(client, ""))
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setupRedis(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:"))
	ctx := context.Background()

	status := domain.NewStatus("acme", "u-1", "onboarding", "draft", time.Now())
	require.NoError(t, store.Create(ctx, status))

	assert.True(t, mr.Exists("custom:status:u-1"))
	members, err := mr.Members("custom:objects:acme:onboarding")
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1"}, members)
}

func TestRedisStore_CorruptedRecord(t *testing.T) {
	mr, client := setupRedis(t)
	store := redis.NewFromClient(client)
	require.NoError(t, mr.Set("waypoint:status:broken", "{not json"))

	_, err := store.Load(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal status")
}

func TestRedisLocker_Contract(t *testing.T) {
	_, client := setupRedis(t)
	ports.RunLockerContract(t, redis.NewLocker(client, ""))
}

func TestRedisLocker_ForeignUnlockIsIgnored(t *testing.T) {
	mr, client := setupRedis(t)
	locker := redis.NewLocker(client, "")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "config:acme:onboarding", time.Second)
	require.NoError(t, err)

	// The lock expired and someone else took it; our unlock must not release theirs.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("waypoint:lock:config:acme:onboarding", "someone-else"))
	require.NoError(t, unlock(ctx))

	val, err := mr.Get("waypoint:lock:config:acme:onboarding")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestRedisStore_OutcomeWriteDuringCommitIsNotAConflict(t *testing.T) {
	_, client := setupRedis(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()
	now := time.Now().UTC()

	status := domain.NewStatus("acme", "u-1", "onboarding", "draft", now)
	require.NoError(t, store.Create(ctx, status))
	first := domain.HistoryEntry{ID: "e-1", FromStateID: "draft", ToStateID: "active", TransitionID: "activate", At: now}
	committed, err := store.CompareAndSwap(ctx, "u-1", status.Version, "active", first)
	require.NoError(t, err)

	late := []domain.ActionOutcome{{ActionID: "welcome", Phase: domain.OnEnter, Success: true, At: now}}
	calls := 0
	redis.SetBeforeCommit(store, func() {
		calls++
		if calls == 1 {
			require.NoError(t, store.RecordOutcomes(ctx, "u-1", "e-1", late))
		}
	})

	second := domain.HistoryEntry{ID: "e-2", FromStateID: "active", ToStateID: "archived", TransitionID: "archive", At: now}
	updated, err := store.CompareAndSwap(ctx, "u-1", committed.Version, "archived", second)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "the commit is retried once")
	assert.Equal(t, committed.Version+1, updated.Version)
	assert.Equal(t, "archived", updated.CurrentStateID)
	require.Len(t, updated.History, 2)
	assert.Len(t, updated.History[0].Outcomes, 1, "outcomes written during the commit survive")

	_, err = store.CompareAndSwap(ctx, "u-1", committed.Version, "draft", domain.HistoryEntry{ID: "e-3"})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}
