package sync2_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/keypart/internal/sync2"
)

func TestAutoReleaseSymmetric(t *testing.T) {
	b := sync2.NewBarrier(3, true)
	var lastCount int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			last, err := b.Arrive(ctx)
			require.NoError(t, err)
			if last {
				mu.Lock()
				lastCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), lastCount)
}

func TestControllerFencedRendezvous(t *testing.T) {
	b := sync2.NewBarrier(1, false)
	arrived := make(chan struct{})
	released := make(chan struct{})

	go func() {
		ctx := context.Background()
		_, err := b.Arrive(ctx)
		assert.NoError(t, err)
		close(released)
	}()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, b.WaitArmed(ctx))
		close(arrived)
	}()

	<-arrived

	select {
	case <-released:
		t.Fatal("participant released before controller called Release")
	case <-time.After(20 * time.Millisecond):
	}

	b.Release()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("participant never released")
	}
}

func TestArenaNewCycleReplacesBarriers(t *testing.T) {
	a := sync2.NewArena()
	tracker1, quiesce1 := a.NewCycle(2)
	tracker2, quiesce2 := a.NewCycle(4)
	assert.NotSame(t, tracker1, tracker2)
	assert.NotSame(t, quiesce1, quiesce2)
}

func TestArriveContextCancellation(t *testing.T) {
	b := sync2.NewBarrier(2, false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := b.Arrive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
