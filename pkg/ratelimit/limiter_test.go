package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPacerAllow(t *testing.T) {
	p := NewPacer(10) // one slot per 100ms

	if !p.Allow() {
		t.Error("Expected first request to be allowed immediately")
	}

	// Slot consumed, the next one is 100ms out
	if p.Allow() {
		t.Error("Expected second request to be denied inside the interval")
	}

	time.Sleep(110 * time.Millisecond)
	if !p.Allow() {
		t.Error("Expected request to be allowed after the interval elapsed")
	}

	// Reset frees the slot without waiting
	p.Reset()
	if !p.Allow() {
		t.Error("Expected request to be allowed after reset")
	}
}

func TestPacerWaitSpacing(t *testing.T) {
	const (
		rate = 100.0 // requests per second
		n    = 10
	)
	p := NewPacer(rate)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Wait(context.Background()); err != nil {
				t.Errorf("Wait returned error: %v", err)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	// N dispatches at rate R must span at least (N-1)/R
	minElapsed := time.Duration(float64(n-1) / rate * float64(time.Second))
	if elapsed < minElapsed {
		t.Errorf("Expected %d dispatches to take at least %v, took %v", n, minElapsed, elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Dispatches took unexpectedly long: %v", elapsed)
	}
}

func TestPacerWaitNoSharedSlot(t *testing.T) {
	// Two concurrent waiters must come back roughly one interval apart,
	// never at the same reserved instant.
	p := NewPacer(20) // 50ms interval

	type result struct{ done time.Time }
	results := make(chan result, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Wait(context.Background())
			results <- result{done: time.Now()}
		}()
	}
	wg.Wait()
	close(results)

	var times []time.Time
	for r := range results {
		times = append(times, r.done)
	}
	gap := times[1].Sub(times[0])
	if gap < 0 {
		gap = -gap
	}
	if gap < 30*time.Millisecond {
		t.Errorf("Expected dispatches spaced by the interval, gap was %v", gap)
	}
}

func TestPacerWaitCancelled(t *testing.T) {
	p := NewPacer(1) // one slot per second

	// Consume the immediate slot
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Wait(ctx)
	if err == nil {
		t.Fatal("Expected Wait to fail when the context expires first")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Expected cancellation to return promptly, took %v", elapsed)
	}
}

func TestPacerZeroRate(t *testing.T) {
	p := NewPacer(0)

	if !p.Allow() {
		t.Error("Expected unlimited pacer to always allow")
	}
	if err := p.Wait(context.Background()); err != nil {
		t.Errorf("Expected unlimited pacer Wait to return nil, got %v", err)
	}
}

func TestEffectiveRate(t *testing.T) {
	tests := []struct {
		name         string
		maxPerMinute int
		safetyFactor float64
		overrideRPS  float64
		want         float64
	}{
		{
			name:         "derived from ceiling",
			maxPerMinute: 50000,
			safetyFactor: 0.85,
			overrideRPS:  0,
			want:         50000 * 0.85 / 60.0,
		},
		{
			name:         "override below safe rate",
			maxPerMinute: 50000,
			safetyFactor: 0.85,
			overrideRPS:  100,
			want:         100,
		},
		{
			name:         "override above safe rate is clamped",
			maxPerMinute: 600,
			safetyFactor: 0.5,
			overrideRPS:  1000,
			want:         600 * 0.5 / 60.0,
		},
		{
			name:         "tiny ceiling floors at one per minute",
			maxPerMinute: 0,
			safetyFactor: 0.85,
			overrideRPS:  0,
			want:         1.0 / 60.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveRate(tt.maxPerMinute, tt.safetyFactor, tt.overrideRPS)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("EffectiveRate() = %v, want %v", got, tt.want)
			}
		})
	}
}
