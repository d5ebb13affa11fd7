// Package runner schedules simulated users in batches and aggregates their outcomes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"portalsim/internal/pacing"
	"portalsim/internal/session"
	"portalsim/internal/stats"
	"portalsim/internal/workload"
)

// ErrPreflight wraps a failure to start any browser; the run does not begin.
var ErrPreflight = errors.New("runner: preflight failed")

type Options struct {
	TotalBatches      int
	ConcurrentBatches int
	// GroupPause throttles between two groups of batches.
	GroupPause time.Duration
	// LaunchRate caps session starts per second; 0 disables the limiter.
	LaunchRate float64
	Seed       int64

	Checker     Checker
	Observers   []Observer
	Updates     UpdateChan
	KeepResults bool
	Logger      *zap.Logger
}

type Runner struct {
	ID string

	opts     Options
	gen      *workload.Generator
	sessions SessionRunner
	rng      *rand.Rand
	limiter  *rate.Limiter
	logger   *zap.Logger

	state    atomic.Int32
	inflight atomic.Int64
	results  []session.Result
}

func New(gen *workload.Generator, sessions SessionRunner, opts Options) *Runner {
	if opts.ConcurrentBatches < 1 {
		opts.ConcurrentBatches = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Updates == nil {
		// Avoid nil channel sends if not provided
		opts.Updates = make(UpdateChan, 10)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	r := &Runner{
		ID:       uuid.New().String(),
		opts:     opts,
		gen:      gen,
		sessions: sessions,
		rng:      rand.New(rand.NewSource(seed)),
		logger:   opts.Logger,
	}
	if opts.LaunchRate > 0 {
		burst := int(opts.LaunchRate)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opts.LaunchRate), burst)
	}
	return r
}

func (r *Runner) Plan() stats.Plan {
	return stats.Plan{
		TotalBatches:  r.opts.TotalBatches,
		UsersPerBatch: r.gen.UsersPerBatch(),
		Composition:   r.gen.Composition(),
	}
}

func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) InFlight() int64 {
	return r.inflight.Load()
}

// Results returns every session result when KeepResults is set. Call after Run.
func (r *Runner) Results() []session.Result {
	return r.results
}

// groups splits batch numbers 1..TotalBatches into groups of ConcurrentBatches.
func (r *Runner) groups() [][]int {
	var groups [][]int
	for start := 1; start <= r.opts.TotalBatches; start += r.opts.ConcurrentBatches {
		end := min(start+r.opts.ConcurrentBatches-1, r.opts.TotalBatches)
		group := make([]int, 0, end-start+1)
		for b := start; b <= end; b++ {
			group = append(group, b)
		}
		groups = append(groups, group)
	}
	return groups
}

// Run drives the whole simulation. Per-user failures are counted, never
// returned. The error is non-nil only for a failed preflight or when ctx is
// cancelled; the partial summary is still returned in the latter case.
func (r *Runner) Run(ctx context.Context) (stats.Summary, error) {
	if r.opts.Checker != nil {
		if err := r.opts.Checker.Check(ctx); err != nil {
			return stats.Summary{RunID: r.ID}, fmt.Errorf("%w: %v", ErrPreflight, err)
		}
	}

	agg := stats.NewAggregate(r.Plan(), time.Now())
	groups := r.groups()
	r.state.Store(int32(Running))

	for gi, group := range groups {
		if ctx.Err() != nil {
			break
		}
		r.logger.Debug("group started", zap.Int("group", gi+1), zap.Ints("batches", group))
		r.runGroup(ctx, gi+1, len(groups), group, agg)

		if gi < len(groups)-1 {
			_ = pacing.Sleep(ctx, r.opts.GroupPause)
		}
	}

	summary := agg.Summary(time.Now())
	summary.RunID = r.ID

	final := Completed
	if ctx.Err() != nil {
		final = Interrupted
		summary.Interrupted = true
	}
	r.state.Store(int32(final))
	r.publish(Snapshot{
		RunID:       r.ID,
		State:       final,
		Group:       len(groups),
		TotalGroups: len(groups),
		Progress:    agg.Progress(time.Now()),
	})

	if final == Interrupted {
		return summary, ctx.Err()
	}
	return summary, nil
}

type batchOutcome struct {
	batch   int
	results []session.Result
}

// runGroup runs every batch of group concurrently and folds each batch as it
// settles. It returns only after all sessions of the group have settled.
func (r *Runner) runGroup(ctx context.Context, group, totalGroups int, batches []int, agg *stats.Aggregate) {
	done := make(chan batchOutcome, len(batches))
	var g errgroup.Group

	for _, b := range batches {
		// Generator and rng are only touched from this goroutine.
		users := r.gen.Batch(b)
		seeds := make([]int64, len(users))
		for i := range seeds {
			seeds[i] = r.rng.Int63()
		}
		g.Go(func() error {
			done <- r.runBatch(ctx, b, users, seeds)
			return nil
		})
	}

	for range batches {
		out := <-done
		r.fold(agg, out)
		r.emit(Snapshot{
			RunID:       r.ID,
			State:       Running,
			Batch:       out.batch,
			Group:       group,
			TotalGroups: totalGroups,
			InFlight:    r.InFlight(),
			Progress:    agg.Progress(time.Now()),
		})
	}
	_ = g.Wait()
}

func (r *Runner) runBatch(ctx context.Context, batch int, users []workload.SimulatedUser, seeds []int64) batchOutcome {
	results := make([]session.Result, len(users))
	var g errgroup.Group

	for i, u := range users {
		g.Go(func() error {
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					results[i] = session.Result{User: u, Started: time.Now(), Err: fmt.Errorf("launch limiter: %w", err)}
					return nil
				}
			}
			r.inflight.Add(1)
			defer r.inflight.Add(-1)
			results[i] = r.sessions.Run(ctx, u, rand.New(rand.NewSource(seeds[i])))
			return nil
		})
	}
	_ = g.Wait()
	return batchOutcome{batch: batch, results: results}
}

func (r *Runner) fold(agg *stats.Aggregate, out batchOutcome) {
	for _, res := range out.results {
		agg.Add(stats.Outcome{
			Category:       res.User.Category,
			Success:        res.Success(),
			AnalyticsCalls: res.AnalyticsCalls,
			Pages:          len(res.Pages),
			Duration:       res.Duration,
		})
		if r.opts.KeepResults {
			r.results = append(r.results, res)
		}
		for _, o := range r.opts.Observers {
			o.SessionFinished(res)
		}
	}
	agg.CompleteBatch()
}

func (r *Runner) emit(snap Snapshot) {
	r.publish(snap)
	for _, o := range r.opts.Observers {
		o.BatchCompleted(snap)
	}
}

func (r *Runner) publish(snap Snapshot) {
	// Non-blocking send
	select {
	case r.opts.Updates <- snap:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}
