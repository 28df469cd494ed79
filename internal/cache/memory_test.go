package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutGet(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	err := store.Put(ctx, LoginPendingKey("abc"), []byte("payload"), time.Minute)
	require.NoError(t, err)

	got, err := store.Get(ctx, LoginPendingKey("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestMemory_GetMissingKey(t *testing.T) {
	store := NewMemory()

	_, err := store.Get(context.Background(), "never-written")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemory_ExpiredReadsAsAbsent(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	// The janitor has not run yet; expiry must still be enforced at read time.
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = store.Take(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemory_TakeConsumesOnce(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v"), time.Minute))

	got, err := store.Take(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	_, err = store.Take(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemory_TakeConcurrentSingleWinner(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v"), time.Minute))

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, "k"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one concurrent Take may succeed")
}

func TestMemory_DeleteIsIdempotent(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeyNamespacesDoNotCollide(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	token := "deadbeef"
	require.NoError(t, store.Put(ctx, TotpPendingKey(token), []byte("enroll"), time.Minute))
	require.NoError(t, store.Put(ctx, LoginPendingKey(token), []byte("login"), time.Minute))
	require.NoError(t, store.Put(ctx, LoginCodeKey(token), []byte("code"), time.Minute))
	require.NoError(t, store.Put(ctx, PasswordResetKey(token), []byte("reset"), time.Minute))

	got, err := store.Get(ctx, LoginPendingKey(token))
	require.NoError(t, err)
	assert.Equal(t, []byte("login"), got)

	got, err = store.Get(ctx, TotpPendingKey(token))
	require.NoError(t, err)
	assert.Equal(t, []byte("enroll"), got)
}
