package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/music-spaces/pkg/models"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSessionStore(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	info := &SessionInfo{UserID: "u1", IssuedAt: time.Now().UTC(), ExpiresAt: time.Now().Add(time.Hour).UTC()}
	require.NoError(t, store.StoreSession(ctx, "sid", info))

	got, err := store.GetSession(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Greater(t, mr.TTL("session:sid"), 59*time.Minute)

	require.NoError(t, store.DeleteSession(ctx, "sid"))
	_, err = store.GetSession(ctx, "sid")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.DeleteSession(ctx, "sid"))
}

func TestSessionStoreExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	info := &SessionInfo{UserID: "u1", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, store.StoreSession(ctx, "sid", info))

	mr.FastForward(2 * time.Minute)
	_, err := store.GetSession(ctx, "sid")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Error(t, store.StoreSession(ctx, "old", &SessionInfo{ExpiresAt: time.Now().Add(-time.Second)}))
}

func TestLockerExclusive(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewLocker(client, 5*time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			unlock, err := locker.Lock(ctx, "space-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLockerTimeout(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewLocker(client, 5*time.Second)

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock2, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock2()
}

func TestLockerUnlockKeepsForeignHolder(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewLocker(client, time.Second)

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	// the lease lapses and someone else takes it
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:k", "other"))

	unlock()
	got, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, "other", got)
}

func TestSpaceCache(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewSpaceCache(client)
	ctx := context.Background()

	got, err := cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, &models.Space{ID: "s1", Name: "Friday", HostID: "h", JoinCode: "abcdefghij"}))
	got, err = cache.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Friday", got.Name)
	assert.Equal(t, "abcdefghij", got.JoinCode)
	assert.Equal(t, 24*time.Hour, mr.TTL("space:s1"))

	require.NoError(t, cache.Delete(ctx, "s1"))
	got, err = cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
