package scrape

import (
	"context"
	"sync"
)

// gate is the worker admission gate: a counting semaphore whose limit can be
// resized while held, plus a pause flag. Shrinking or pausing never revokes
// slots already given out; both only stop new acquisitions.
type gate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	limit  int
	inUse  int
	paused bool
}

func newGate(limit int) *gate {
	g := &gate{limit: limit}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// acquire blocks until a slot is free and the gate is unpaused. Returns
// false when ctx ends first.
func (g *gate) acquire(ctx context.Context) bool {
	stop := context.AfterFunc(ctx, func() {
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	})
	defer stop()

	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		if ctx.Err() != nil {
			return false
		}
		if !g.paused && g.inUse < g.limit {
			g.inUse++
			return true
		}
		g.cond.Wait()
	}
}

func (g *gate) release() {
	g.mu.Lock()
	if g.inUse > 0 {
		g.inUse--
	}
	g.cond.Broadcast()
	g.mu.Unlock()
}

func (g *gate) resize(limit int) {
	g.mu.Lock()
	g.limit = limit
	g.cond.Broadcast()
	g.mu.Unlock()
}

func (g *gate) pause() {
	g.mu.Lock()
	g.paused = true
	g.mu.Unlock()
}

func (g *gate) resume() {
	g.mu.Lock()
	g.paused = false
	g.cond.Broadcast()
	g.mu.Unlock()
}

func (g *gate) snapshot() (limit, inUse int, paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit, g.inUse, g.paused
}
