package worker

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/neuraflow/internal/testutil/testlog"
)

func TestDefaultBackoffIsFixed(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultBackoff()
	for _, attempt := range []int{1, 2, 10, 1000} {
		if got := NextBackoffDelay(cfg, attempt, nil); got != 2*time.Second {
			t.Fatalf("attempt%d got=%v", attempt, got)
		}
	}
}

func TestNextBackoffDelayGrowthCapped(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     time.Second,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 5, nil); got != time.Second {
		t.Fatalf("attempt5 got=%v", got)
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: time.Second, Multiplier: 1, Jitter: true}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		got := NextBackoffDelay(cfg, 3, rng)
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
}

func TestNextBackoffDelayZeroInitial(t *testing.T) {
	testlog.Start(t)
	if got := NextBackoffDelay(BackoffConfig{}, 4, nil); got != 0 {
		t.Fatalf("zero config got=%v", got)
	}
}
