package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_Deduplicates(t *testing.T) {
	var g Group[int]
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	fn := func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	shared := make([]bool, n)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], shared[0], _ = g.Do(context.Background(), "k", fn)
	}()
	<-started
	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], shared[i], _ = g.Do(context.Background(), "k", fn)
		}(i)
	}

	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.calls["k"] != nil && g.calls["k"].waiters == n
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range results {
		assert.Equal(t, 42, results[i])
	}
	assert.False(t, shared[0])
	assert.True(t, shared[1])
	assert.Equal(t, 0, g.InFlight())
}

func TestGroup_PropagatesError(t *testing.T) {
	var g Group[int]
	boom := errors.New("boom")

	_, _, err := g.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)

	v, _, err := g.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestGroup_SurvivesOneWaiterLeaving(t *testing.T) {
	var g Group[int]
	release := make(chan struct{})
	var cancelled atomic.Bool

	fn := func(ctx context.Context) (int, error) {
		select {
		case <-release:
			return 1, nil
		case <-ctx.Done():
			cancelled.Store(true)
			return 0, ctx.Err()
		}
	}

	first, cancelFirst := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, _, err := g.Do(first, "k", fn)
		errc <- err
	}()
	require.Eventually(t, func() bool { return g.InFlight() == 1 }, time.Second, time.Millisecond)

	done := make(chan int, 1)
	go func() {
		v, _, _ := g.Do(context.Background(), "k", fn)
		done <- v
	}()
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.calls["k"].waiters == 2
	}, time.Second, time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.False(t, cancelled.Load())

	close(release)
	assert.Equal(t, 1, <-done)
}

func TestGroup_CancelsWhenEveryWaiterLeaves(t *testing.T) {
	var g Group[int]
	stopped := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := g.Do(ctx, "k", func(fctx context.Context) (int, error) {
		<-fctx.Done()
		close(stopped)
		return 0, fctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("computation was not cancelled")
	}
	assert.Equal(t, 0, g.InFlight())
}
