package cache

import (
	"context"
	"sync"
)

// Group deduplicates concurrent computations by key. Callers that arrive
// while a computation is in flight wait for its result instead of starting
// another. The computation runs detached from any single caller and is
// cancelled only once every waiting caller has given up.
type Group[V any] struct {
	mu    sync.Mutex
	calls map[string]*flight[V]
}

type flight[V any] struct {
	done    chan struct{}
	val     V
	err     error
	waiters int
	cancel  context.CancelFunc
}

// Do runs fn for key unless a run is already in flight, and returns its
// result. shared reports whether the result came from a run started by
// another caller.
func (g *Group[V]) Do(ctx context.Context, key string, fn func(context.Context) (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*flight[V])
	}
	if f, ok := g.calls[key]; ok {
		f.waiters++
		g.mu.Unlock()
		return g.wait(ctx, key, f, true)
	}

	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight[V]{done: make(chan struct{}), waiters: 1, cancel: cancel}
	g.calls[key] = f
	g.mu.Unlock()

	go func() {
		defer cancel()
		f.val, f.err = fn(fctx)
		close(f.done)

		g.mu.Lock()
		if g.calls[key] == f {
			delete(g.calls, key)
		}
		g.mu.Unlock()
	}()

	return g.wait(ctx, key, f, false)
}

func (g *Group[V]) wait(ctx context.Context, key string, f *flight[V], shared bool) (V, bool, error) {
	select {
	case <-f.done:
		return f.val, shared, f.err
	case <-ctx.Done():
	}

	g.mu.Lock()
	f.waiters--
	if f.waiters == 0 {
		f.cancel()
		if g.calls[key] == f {
			delete(g.calls, key)
		}
	}
	g.mu.Unlock()

	var zero V
	return zero, shared, ctx.Err()
}

// InFlight reports how many keys are currently being computed.
func (g *Group[V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
