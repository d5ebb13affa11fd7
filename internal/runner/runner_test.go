package runner

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalsim/internal/analytics"
	"portalsim/internal/browser/browsertest"
	"portalsim/internal/pacing"
	"portalsim/internal/session"
	"portalsim/internal/stats"
	"portalsim/internal/workload"
)

const beaconURL = "http://portal.test/_vercel/insights/view"

type harness struct {
	launcher *browsertest.Launcher
	runner   *Runner
	updates  UpdateChan
	observer *recordingObserver
}

func newHarness(t *testing.T, l *browsertest.Launcher, totalBatches, usersPerBatch, concurrent int, opts ...func(*Options)) *harness {
	t.Helper()
	gen, err := workload.NewGenerator(workload.GeneratorConfig{
		UsersPerBatch: usersPerBatch,
		Composition:   workload.Composition{Domestic: 4, International: 1},
	}, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	sessions := session.NewRunner(l, session.Options{
		BaseURL:           "http://portal.test",
		Pages:             []string{"/", "/services", "/about", "/contact"},
		NavigationTimeout: time.Second,
		ClickProbability:  0.4,
		Matcher:           analytics.NewMatcher(nil),
		Pacing:            pacing.Zero{},
	})

	obs := &recordingObserver{}
	updates := make(UpdateChan, 100)
	o := Options{
		TotalBatches:      totalBatches,
		ConcurrentBatches: concurrent,
		Seed:              11,
		Checker:           l,
		Observers:         []Observer{obs},
		Updates:           updates,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &harness{launcher: l, runner: New(gen, sessions, o), updates: updates, observer: obs}
}

type recordingObserver struct {
	mu       sync.Mutex
	finished []session.Result
	batches  []Snapshot
	onBatch  func(Snapshot)
}

func (o *recordingObserver) SessionFinished(res session.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, res)
}

func (o *recordingObserver) BatchCompleted(snap Snapshot) {
	o.mu.Lock()
	o.batches = append(o.batches, snap)
	o.mu.Unlock()
	if o.onBatch != nil {
		o.onBatch(snap)
	}
}

func userID(label string) int {
	id, _ := strconv.Atoi(strings.TrimPrefix(label, "user-"))
	return id
}

func assertConservation(t *testing.T, s stats.Summary) {
	t.Helper()
	assert.Equal(t, s.UsersCompleted, s.UsersSucceeded+s.UsersFailed)
	assert.Equal(t, s.BatchesCompleted*s.UsersPlanned/s.TotalBatches, s.UsersCompleted)
}

func TestRun_HappyPath(t *testing.T) {
	l := &browsertest.Launcher{Beacons: []string{beaconURL}}
	h := newHarness(t, l, 2, 5, 2)

	summary, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.BatchesCompleted)
	assert.Equal(t, 10, summary.UsersCompleted)
	assert.Equal(t, 10, summary.UsersSucceeded)
	assert.Equal(t, 0, summary.UsersFailed)
	assert.GreaterOrEqual(t, summary.AnalyticsCalls, 10)
	assert.Equal(t, summary.PagesVisited, summary.AnalyticsCalls, "one beacon per page visit")
	assert.False(t, summary.Interrupted)
	assert.Equal(t, h.runner.ID, summary.RunID)
	assert.Equal(t, Completed, h.runner.State())
	assertConservation(t, summary)

	assert.Equal(t, 10, l.Count(browsertest.EventLaunch))
	assert.Equal(t, 10, l.Count(browsertest.EventClose))
	assert.Zero(t, l.Open())
	assert.Zero(t, h.runner.InFlight())
}

func TestRun_FullFailure(t *testing.T) {
	l := &browsertest.Launcher{
		Beacons:     []string{beaconURL},
		NavigateErr: func(string, string) error { return browsertest.ErrTimeout },
	}
	h := newHarness(t, l, 2, 5, 2)

	summary, err := h.runner.Run(context.Background())
	require.NoError(t, err, "per-user failures never fail the run")

	assert.Equal(t, 0, summary.UsersSucceeded)
	assert.Equal(t, 10, summary.UsersFailed)
	assert.Equal(t, 10, summary.UsersCompleted)
	assert.Equal(t, 0, summary.AnalyticsCalls)
	assert.Equal(t, 2, summary.BatchesCompleted)
	assertConservation(t, summary)

	assert.Equal(t, l.Count(browsertest.EventLaunch), l.Count(browsertest.EventClose))
	assert.Zero(t, l.Open())
}

func TestRun_PartialFailureOnInternationalUsers(t *testing.T) {
	l := &browsertest.Launcher{
		NavigateErr: func(label, _ string) error {
			// The international user is the last of each batch of five.
			if userID(label)%5 == 0 {
				return browsertest.ErrTimeout
			}
			return nil
		},
	}
	h := newHarness(t, l, 4, 5, 2, func(o *Options) { o.KeepResults = true })

	summary, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.UsersFailed)
	assert.Equal(t, 16, summary.UsersSucceeded)
	assertConservation(t, summary)

	require.Len(t, h.runner.Results(), 20)
	for _, res := range h.runner.Results() {
		if !res.Success() {
			assert.Equal(t, workload.International, res.User.Category, "user %d", res.User.ID)
		}
	}
}

func TestRun_LaunchFailuresAreCounted(t *testing.T) {
	l := &browsertest.Launcher{
		LaunchErr: func(label string) error {
			if userID(label)%2 == 0 {
				return errors.New("chrome crashed on start")
			}
			return nil
		},
	}
	h := newHarness(t, l, 2, 5, 1)

	summary, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.UsersFailed)
	assert.Equal(t, 5, summary.UsersSucceeded)
	assert.Equal(t, l.Count(browsertest.EventLaunch), l.Count(browsertest.EventClose))
}

func TestRun_GroupOrdering(t *testing.T) {
	l := &browsertest.Launcher{NavigateDelay: 5 * time.Millisecond}
	const usersPerBatch, concurrent = 5, 2
	h := newHarness(t, l, 5, usersPerBatch, concurrent)

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	groupOf := func(label string) int {
		batch := (userID(label)-1)/usersPerBatch + 1
		return (batch - 1) / concurrent
	}

	firstLaunch := map[int]time.Time{}
	lastClose := map[int]time.Time{}
	for _, e := range l.Events() {
		g := groupOf(e.Label)
		switch e.Kind {
		case browsertest.EventLaunch:
			if t0, ok := firstLaunch[g]; !ok || e.At.Before(t0) {
				firstLaunch[g] = e.At
			}
		case browsertest.EventClose:
			if t1, ok := lastClose[g]; !ok || e.At.After(t1) {
				lastClose[g] = e.At
			}
		}
	}

	require.Len(t, firstLaunch, 3)
	for g := 1; g < 3; g++ {
		assert.False(t, firstLaunch[g].Before(lastClose[g-1]),
			"group %d started before group %d settled", g, g-1)
	}
}

func TestRun_ConcurrencyWithinGroup(t *testing.T) {
	l := &browsertest.Launcher{NavigateDelay: 20 * time.Millisecond}
	h := newHarness(t, l, 2, 5, 2)

	var peak int64
	done, stopped := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			default:
				if n := h.runner.InFlight(); n > peak {
					peak = n
				}
				time.Sleep(time.Millisecond)
			}
		}
	}()

	_, err := h.runner.Run(context.Background())
	close(done)
	<-stopped
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int64(10))
	assert.Greater(t, peak, int64(1), "sessions of a group must overlap")
}

func TestRun_PreflightFailure(t *testing.T) {
	l := &browsertest.Launcher{CheckErr: errors.New("no chrome binary")}
	h := newHarness(t, l, 2, 5, 2)

	_, err := h.runner.Run(context.Background())

	assert.ErrorIs(t, err, ErrPreflight)
	assert.Zero(t, l.Count(browsertest.EventLaunch))
	assert.Equal(t, NotStarted, h.runner.State())
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := &browsertest.Launcher{}
	h := newHarness(t, l, 4, 5, 1, func(o *Options) { o.GroupPause = time.Hour })
	h.observer.onBatch = func(Snapshot) { cancel() }

	summary, err := h.runner.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, Interrupted, h.runner.State())
	assert.Equal(t, 1, summary.BatchesCompleted)
	assert.Equal(t, 5, summary.UsersCompleted)
	assertConservation(t, summary)
	assert.Zero(t, l.Open())
}

func TestRun_SnapshotsAndObservers(t *testing.T) {
	l := &browsertest.Launcher{}
	h := newHarness(t, l, 3, 5, 2)

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	close(h.updates)

	var snaps []Snapshot
	for s := range h.updates {
		snaps = append(snaps, s)
	}
	require.Len(t, snaps, 4, "one per batch plus the final state")
	for i, s := range snaps[:3] {
		assert.Equal(t, Running, s.State)
		assert.Equal(t, i+1, s.Progress.BatchesDone)
	}
	last := snaps[3]
	assert.Equal(t, Completed, last.State)
	assert.Equal(t, 15, last.Progress.UsersDone)
	assert.Equal(t, 2, last.TotalGroups)

	assert.Len(t, h.observer.finished, 15)
	assert.Len(t, h.observer.batches, 3)
}

func TestRun_LaunchRateLimiter(t *testing.T) {
	l := &browsertest.Launcher{}
	h := newHarness(t, l, 1, 5, 1, func(o *Options) { o.LaunchRate = 1000 })

	summary, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.UsersSucceeded)
}

func TestGroups(t *testing.T) {
	r := &Runner{opts: Options{TotalBatches: 5, ConcurrentBatches: 2}}
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, r.groups())

	r = &Runner{opts: Options{TotalBatches: 2, ConcurrentBatches: 4}}
	assert.Equal(t, [][]int{{1, 2}}, r.groups())
}
