package storage_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/betledger/internal/adapters/storage"
	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRedisStore conecta al Redis de REDIS_ADDR con un prefijo único por test.
func newRedisStore(t *testing.T) *storage.RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := storage.NewRedisStore(ctx, storage.RedisConfig{
		Addr:      addr,
		KeyPrefix: "betledger-test-" + uuid.NewString(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.InitialState(), got)

	require.NoError(t, s.Save(ctx, sampleState()))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestRedisLocker_SerializesHolders(t *testing.T) {
	s := newRedisStore(t)
	lk := s.Locker(2 * time.Second)
	ctx := context.Background()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := lk.Acquire(ctx, "k")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
			unlock() // idempotente
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

func TestRedisLocker_ContextExpiry(t *testing.T) {
	s := newRedisStore(t)
	lk := s.Locker(5 * time.Second)

	unlock, err := lk.Acquire(context.Background(), "busy")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = lk.Acquire(ctx, "busy")
	assert.ErrorIs(t, err, domain.ErrLockHeld)
}
