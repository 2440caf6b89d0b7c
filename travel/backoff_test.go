package travel

import (
	"context"
	"testing"
	"time"
)

func TestWaiter_PickSecondsDefaultRange(t *testing.T) {
	w := &Waiter{}
	for i := 0; i < 1000; i++ {
		d := w.pickSeconds()
		if d < 61 || d > 65 {
			t.Fatalf("trial %d: pickSeconds() = %d, want 61..65", i, d)
		}
	}
}

func TestWaiter_PickSecondsCustomRange(t *testing.T) {
	w := &Waiter{MinSeconds: 2, MaxSeconds: 4}
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		d := w.pickSeconds()
		if d < 2 || d > 4 {
			t.Fatalf("pickSeconds() = %d, want 2..4", d)
		}
		seen[d] = true
	}
	// Uniform draw over an inclusive range: all three values should show
	// up over 1000 trials.
	for _, v := range []int{2, 3, 4} {
		if !seen[v] {
			t.Errorf("value %d never drawn", v)
		}
	}
}

func TestWaiter_PickSecondsDegenerateRange(t *testing.T) {
	w := &Waiter{MinSeconds: 7, MaxSeconds: 3}
	for i := 0; i < 100; i++ {
		if d := w.pickSeconds(); d != 7 {
			t.Fatalf("pickSeconds() = %d, want 7", d)
		}
	}
}

func TestWaiter_WaitCompletes(t *testing.T) {
	var ticks []int
	w := &Waiter{
		MinSeconds: 3,
		MaxSeconds: 3,
		Tick:       time.Millisecond,
		OnTick:     func(remaining int) { ticks = append(ticks, remaining) },
	}
	if got := w.Wait(context.Background()); got != WaitCompleted {
		t.Fatalf("Wait() = %v, want WaitCompleted", got)
	}
	if len(ticks) != 3 {
		t.Fatalf("got %d ticks, want 3", len(ticks))
	}
	for i, want := range []int{3, 2, 1} {
		if ticks[i] != want {
			t.Errorf("tick %d = %d, want %d", i, ticks[i], want)
		}
	}
}

func TestWaiter_WaitCancelledMidCountdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var ticks int
	w := &Waiter{
		MinSeconds: 60,
		MaxSeconds: 60,
		Tick:       time.Millisecond,
		OnTick: func(remaining int) {
			ticks++
			if ticks == 2 {
				cancel()
			}
		},
	}
	if got := w.Wait(ctx); got != WaitCancelled {
		t.Fatalf("Wait() = %v, want WaitCancelled", got)
	}
	// Cancellation lands at the current tick; nothing fires afterwards.
	if ticks != 2 {
		t.Errorf("got %d ticks, want 2", ticks)
	}
}
