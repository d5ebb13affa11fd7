// Package pacing decides how long a simulated user waits between actions.
package pacing

import (
	"context"
	"math/rand"
	"time"

	"portalsim/internal/workload"
)

type Step int

const (
	// StepScroll is the pause between two scroll positions on a page.
	StepScroll Step = iota
	// StepPage is the pause before leaving a page.
	StepPage
)

// Policy returns the delay before the next step of a session.
type Policy interface {
	Delay(step Step, profile workload.BehaviorProfile, rng *rand.Rand) time.Duration
}

// Human emulates reading pace: short randomized scroll pauses and longer
// inter-page delays, stretched for profiles that read more of each page.
type Human struct {
	ScrollMin, ScrollMax time.Duration
	PageMin, PageMax     time.Duration
}

func DefaultHuman() Human {
	return Human{
		ScrollMin: 300 * time.Millisecond,
		ScrollMax: 800 * time.Millisecond,
		PageMin:   1 * time.Second,
		PageMax:   3 * time.Second,
	}
}

func (h Human) Delay(step Step, profile workload.BehaviorProfile, rng *rand.Rand) time.Duration {
	switch step {
	case StepScroll:
		return between(h.ScrollMin, h.ScrollMax, rng)
	case StepPage:
		d := between(h.PageMin, h.PageMax, rng)
		return time.Duration(float64(d) * profile.ScrollDepth)
	}
	return 0
}

func between(min, max time.Duration, rng *rand.Rand) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}

// Zero never waits.
type Zero struct{}

func (Zero) Delay(Step, workload.BehaviorProfile, *rand.Rand) time.Duration { return 0 }

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
