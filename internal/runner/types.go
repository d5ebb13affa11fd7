package runner

import (
	"context"
	"math/rand"

	"portalsim/internal/session"
	"portalsim/internal/stats"
	"portalsim/internal/workload"
)

type State int32

const (
	NotStarted State = iota
	Running
	Completed
	Interrupted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Interrupted:
		return "interrupted"
	}
	return "unknown"
}

// SessionRunner executes one simulated user. Implementations must not
// return before the session's browser has been released.
type SessionRunner interface {
	Run(ctx context.Context, user workload.SimulatedUser, rng *rand.Rand) session.Result
}

// Checker verifies before the run that sessions can be started at all.
type Checker interface {
	Check(ctx context.Context) error
}

// Observer is notified from the scheduler goroutine only, in fold order.
type Observer interface {
	SessionFinished(res session.Result)
	BatchCompleted(snap Snapshot)
}

// Snapshot is sent over the update channel after every folded batch.
type Snapshot struct {
	RunID       string
	State       State
	Batch       int // batch just folded, 0 when none
	Group       int // 1-based
	TotalGroups int
	InFlight    int64
	Progress    stats.Progress
}

// UpdateChan carries snapshots to a live view. Sends never block the scheduler.
type UpdateChan chan Snapshot
