package workers

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")
	available := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task (1.0x multiplier)",
			multiplier: 1.0,
			minExpect:  1,
			maxExpect:  available,
		},
		{
			name:       "I/O-bound task (2.0x multiplier)",
			multiplier: 2.0,
			minExpect:  1,
			maxExpect:  available * 2,
		},
		{
			name:       "Cover decoding (1.5x multiplier)",
			multiplier: 1.5,
			minExpect:  1,
			maxExpect:  int(float64(available) * 1.5),
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      2,
			minExpect:  1,
			maxExpect:  2,
		},
		{
			name:       "Tiny multiplier still yields one worker",
			multiplier: 0.01,
			minExpect:  1,
			maxExpect:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)

			if got < tt.minExpect {
				t.Errorf("Count(%v, %d) = %d, expected >= %d", tt.multiplier, tt.limit, got, tt.minExpect)
			}
			if got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, expected <= %d", tt.multiplier, tt.limit, got, tt.maxExpect)
			}
		})
	}
}

func TestCountOverride(t *testing.T) {
	computed := max(1, runtime.GOMAXPROCS(0))

	tests := []struct {
		name  string
		env   string
		limit int
		want  int
	}{
		{name: "valid override", env: "8", want: 8},
		{name: "override capped by limit", env: "20", limit: 10, want: 10},
		{name: "override below limit", env: "5", limit: 10, want: 5},
		{name: "non numeric falls back", env: "lots", want: computed},
		{name: "zero falls back", env: "0", want: computed},
		{name: "negative falls back", env: "-5", want: computed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.env)

			if got := Count(1.0, tt.limit); got != tt.want {
				t.Errorf("Count(1.0, %d) with %s=%q = %d, want %d", tt.limit, EnvOverride, tt.env, got, tt.want)
			}
		})
	}
}

func TestHelpersRespectLimit(t *testing.T) {
	t.Setenv(EnvOverride, "")

	helpers := map[string]func(int) int{
		"ForCPU":   ForCPU,
		"ForIO":    ForIO,
		"ForMixed": ForMixed,
	}

	for name, fn := range helpers {
		t.Run(name, func(t *testing.T) {
			if got := fn(1); got != 1 {
				t.Errorf("%s(1) = %d, want 1", name, got)
			}
			if got := fn(3); got > 3 {
				t.Errorf("%s(3) = %d, want <= 3", name, got)
			}
			if got := fn(0); got < 1 {
				t.Errorf("%s(0) = %d, want >= 1", name, got)
			}
		})
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	var mu sync.Mutex
	seen := make(map[int]bool)
	var active, peak atomic.Int32

	Run(context.Background(), 4, items, func(_ context.Context, i int) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		seen[i] = true
		mu.Unlock()
		active.Add(-1)
	})

	if len(seen) != len(items) {
		t.Errorf("processed %d items, want %d", len(seen), len(items))
	}
	if p := peak.Load(); p > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", p)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	Run(ctx, 1, make([]int, 50), func(context.Context, int) {
		if calls.Add(1) == 3 {
			cancel()
		}
	})

	if n := calls.Load(); n >= 50 {
		t.Errorf("fn called %d times after cancel, want fewer than 50", n)
	}
}

func TestRunEmpty(t *testing.T) {
	t.Parallel()

	Run(context.Background(), 8, []string(nil), func(context.Context, string) {
		t.Fatal("called for no items")
	})
}
