package syncutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLock_MutualExclusion(t *testing.T) {
	l := NewKeyLock()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "order-1")
			if err != nil {
				t.Errorf("lock failed: %v", err)
				return
			}
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyLock_ContextCancelled(t *testing.T) {
	l := NewKeyLock()

	unlock, err := l.Lock(context.Background(), "order-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "order-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeyLock_UnlockAllowsNextHolder(t *testing.T) {
	l := NewKeyLock()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "order-1")
	require.NoError(t, err)
	unlock()

	unlock, err = l.Lock(ctx, "order-1")
	require.NoError(t, err)
	unlock()
}
