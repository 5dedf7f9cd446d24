package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, time.Minute, wait), mr
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	l, mr := newRedisLocker(t, 100*time.Millisecond)
	key := SheetKey("c1", "2025-01-06")

	release, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, mr.Exists("attendance:lock:"+key))

	_, err = l.Lock(context.Background(), key)
	assert.ErrorIs(t, err, ErrBusy)

	release()
	assert.False(t, mr.Exists("attendance:lock:"+key))

	again, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	l, mr := newRedisLocker(t, 100*time.Millisecond)
	key := SheetKey("c1", "2025-01-06")

	release, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	// simulate expiry and takeover by another instance
	require.NoError(t, mr.Set("attendance:lock:"+key, "someone-else"))
	release()

	got, err := mr.Get("attendance:lock:" + key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_WaitsForHolder(t *testing.T) {
	l, _ := newRedisLocker(t, time.Second)
	key := SheetKey("c1", "2025-01-06")

	release, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	second, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	second()
}
