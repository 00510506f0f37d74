package scrape

import (
	"context"
	"testing"
	"time"
)

func acquireAsync(g *gate, ctx context.Context) chan bool {
	done := make(chan bool, 1)
	go func() { done <- g.acquire(ctx) }()
	return done
}

func expectBlocked(t *testing.T, done chan bool) {
	t.Helper()
	select {
	case ok := <-done:
		t.Fatalf("expected acquire to block, returned %v", ok)
	case <-time.After(50 * time.Millisecond):
	}
}

func expectAcquired(t *testing.T, done chan bool) {
	t.Helper()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected successful acquire")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("acquire did not complete")
	}
}

func TestGateLimitsAdmissions(t *testing.T) {
	g := newGate(2)
	ctx := context.Background()

	if !g.acquire(ctx) || !g.acquire(ctx) {
		t.Fatal("expected two immediate admissions")
	}
	third := acquireAsync(g, ctx)
	expectBlocked(t, third)

	g.release()
	expectAcquired(t, third)

	if _, inUse, _ := g.snapshot(); inUse != 2 {
		t.Fatalf("expected 2 slots in use, got %d", inUse)
	}
}

func TestGatePauseGatesNewAdmissionsOnly(t *testing.T) {
	g := newGate(2)
	ctx := context.Background()

	if !g.acquire(ctx) {
		t.Fatal("expected admission before pause")
	}
	g.pause()

	blocked := acquireAsync(g, ctx)
	expectBlocked(t, blocked)

	// The held slot is unaffected by the pause.
	if _, inUse, paused := g.snapshot(); inUse != 1 || !paused {
		t.Fatalf("unexpected snapshot: inUse=%d paused=%v", inUse, paused)
	}

	g.resume()
	expectAcquired(t, blocked)
}

func TestGateResizeWakesWaiters(t *testing.T) {
	g := newGate(1)
	ctx := context.Background()

	if !g.acquire(ctx) {
		t.Fatal("expected first admission")
	}
	waiting := acquireAsync(g, ctx)
	expectBlocked(t, waiting)

	g.resize(2)
	expectAcquired(t, waiting)
}

func TestGateShrinkNeverRevokes(t *testing.T) {
	g := newGate(3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if !g.acquire(ctx) {
			t.Fatalf("expected admission %d", i)
		}
	}

	g.resize(1)
	if limit, inUse, _ := g.snapshot(); limit != 1 || inUse != 3 {
		t.Fatalf("expected 3 held slots under limit 1, got limit=%d inUse=%d", limit, inUse)
	}

	waiting := acquireAsync(g, ctx)
	expectBlocked(t, waiting)

	// Two releases still leave the gate full at the new limit.
	g.release()
	g.release()
	expectBlocked(t, waiting)

	g.release()
	expectAcquired(t, waiting)
}

func TestGateAcquireHonorsContext(t *testing.T) {
	g := newGate(1)
	if !g.acquire(context.Background()) {
		t.Fatal("expected first admission")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if g.acquire(ctx) {
		t.Fatal("expected acquire to fail once context expired")
	}
}
