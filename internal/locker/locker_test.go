package locker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_MutualExclusion(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	var mu sync.Mutex
	var inCritical int
	var maxInCritical int

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "machine-1")
			require.NoError(t, err)
			defer release()

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical)
}

func TestKeyedLocker_IndependentKeys(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "machine-a")
	require.NoError(t, err)
	defer releaseA()

	// A held lock on one machine must not block another machine.
	done := make(chan struct{})
	go func() {
		releaseB, err := l.Acquire(ctx, "machine-b")
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire on independent key blocked")
	}
}

func TestKeyedLocker_ContextCancel(t *testing.T) {
	l := NewKeyedLocker()

	release, err := l.Acquire(context.Background(), "machine-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "machine-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeyedLocker_ReleaseIdempotent(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "machine-1")
	require.NoError(t, err)
	release()
	release()

	next, err := l.Acquire(ctx, "machine-1")
	require.NoError(t, err)
	next()
}
