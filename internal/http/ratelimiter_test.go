package http

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3, 3, 0)

	current := time.Unix(0, 0)
	rl.now = func() time.Time {
		return current
	}

	key := "ip:1.2.3.4"

	for i := 0; i < 3; i++ {
		if !rl.Allow(key) {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}

	if rl.Allow(key) {
		t.Fatalf("expected fourth request to be denied")
	}

	if !rl.Allow("viewer:7") {
		t.Fatalf("expected other clients to keep their own budget")
	}

	current = current.Add(time.Second)

	if !rl.Allow(key) {
		t.Fatalf("expected request after refill to be allowed")
	}
}

func TestRateLimiterPrunesIdleClients(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1, time.Hour)
	t.Cleanup(rl.Stop)

	current := time.Unix(0, 0)
	rl.now = func() time.Time {
		return current
	}

	rl.Allow("ip:1.1.1.1")
	current = current.Add(30 * time.Minute)
	rl.Allow("ip:2.2.2.2")

	current = current.Add(45 * time.Minute)
	rl.pruneStale()

	if got := rl.size(); got != 1 {
		t.Fatalf("expected only the recent client to survive pruning, got %d", got)
	}

	rl.Stop()
	rl.Stop()
}
