// Package stats holds the aggregate counters of a simulation run and the
// reports derived from them.
package stats

import (
	"fmt"
	"time"

	"portalsim/internal/workload"
)

// Plan is the shape of a run, fixed before it starts.
type Plan struct {
	TotalBatches  int
	UsersPerBatch int
	Composition   workload.Composition
}

func (p Plan) TotalUsers() int {
	return p.TotalBatches * p.UsersPerBatch
}

// Outcome is what the aggregate needs from one settled session.
type Outcome struct {
	Category       workload.Category
	Success        bool
	AnalyticsCalls int
	Pages          int
	Duration       time.Duration
}

// Aggregate is folded sequentially by the scheduler. UsersCompleted counts
// every settled session; UsersSucceeded and UsersFailed partition it.
type Aggregate struct {
	Plan    Plan
	Started time.Time

	BatchesCompleted    int
	UsersCompleted      int
	UsersSucceeded      int
	UsersFailed         int
	DomesticFailed      int
	InternationalFailed int
	AnalyticsCalls      int
	PagesVisited        int

	Durations *Histogram
}

func NewAggregate(plan Plan, started time.Time) *Aggregate {
	return &Aggregate{Plan: plan, Started: started, Durations: NewHistogram()}
}

func (a *Aggregate) Add(o Outcome) {
	a.UsersCompleted++
	if o.Success {
		a.UsersSucceeded++
	} else {
		a.UsersFailed++
		if o.Category == workload.International {
			a.InternationalFailed++
		} else {
			a.DomesticFailed++
		}
	}
	a.AnalyticsCalls += o.AnalyticsCalls
	a.PagesVisited += o.Pages
	a.Durations.Record(o.Duration)
}

func (a *Aggregate) CompleteBatch() {
	a.BatchesCompleted++
}

// Progress is a point-in-time view of a run.
type Progress struct {
	BatchesDone       int
	TotalBatches      int
	UsersDone         int
	TotalUsers        int
	Failed            int
	AnalyticsCalls    int
	Elapsed           time.Duration
	Throughput        float64 // users per second
	ETA               time.Duration
	DomesticDone      int
	InternationalDone int
}

// Progress derives the report from the counters only; it does not mutate a.
func (a *Aggregate) Progress(now time.Time) Progress {
	p := Progress{
		BatchesDone:    a.BatchesCompleted,
		TotalBatches:   a.Plan.TotalBatches,
		UsersDone:      a.UsersCompleted,
		TotalUsers:     a.Plan.TotalUsers(),
		Failed:         a.UsersFailed,
		AnalyticsCalls: a.AnalyticsCalls,
		Elapsed:        now.Sub(a.Started),
	}
	if secs := p.Elapsed.Seconds(); secs > 0 {
		p.Throughput = float64(p.UsersDone) / secs
	}
	if p.Throughput > 0 {
		remaining := p.TotalUsers - p.UsersDone
		if remaining < 0 {
			remaining = 0
		}
		p.ETA = time.Duration(float64(remaining) / p.Throughput * float64(time.Second))
	}
	p.DomesticDone, p.InternationalDone = a.Plan.Composition.Split(p.UsersDone)
	return p
}

func (p Progress) Percent() float64 {
	if p.TotalUsers == 0 {
		return 0
	}
	return float64(p.UsersDone) / float64(p.TotalUsers) * 100
}

func (p Progress) String() string {
	eta := "--"
	if p.ETA > 0 || p.UsersDone >= p.TotalUsers {
		eta = p.ETA.Round(time.Second).String()
	}
	return fmt.Sprintf("batch %d/%d | users %d/%d (%.1f%%) | failed %d | %.2f users/s | ETA %s | domestic %d / international %d",
		p.BatchesDone, p.TotalBatches,
		p.UsersDone, p.TotalUsers, p.Percent(),
		p.Failed,
		p.Throughput,
		eta,
		p.DomesticDone, p.InternationalDone,
	)
}

// Summary is the final report of a run.
type Summary struct {
	RunID            string        `json:"run_id"`
	Started          time.Time     `json:"started"`
	Elapsed          time.Duration `json:"elapsed"`
	TotalBatches     int           `json:"total_batches"`
	BatchesCompleted int           `json:"batches_completed"`
	UsersPlanned     int           `json:"users_planned"`
	UsersCompleted   int           `json:"users_completed"`
	UsersSucceeded   int           `json:"users_succeeded"`
	UsersFailed      int           `json:"users_failed"`
	DomesticFailed   int           `json:"domestic_failed"`
	IntlFailed       int           `json:"international_failed"`
	AnalyticsCalls   int           `json:"analytics_calls"`
	PagesVisited     int           `json:"pages_visited"`
	Throughput       float64       `json:"throughput"`
	P50              time.Duration `json:"p50"`
	P90              time.Duration `json:"p90"`
	P99              time.Duration `json:"p99"`
	Max              time.Duration `json:"max"`
	Interrupted      bool          `json:"interrupted"`
}

func (a *Aggregate) Summary(now time.Time) Summary {
	p := a.Progress(now)
	return Summary{
		Started:          a.Started,
		Elapsed:          p.Elapsed,
		TotalBatches:     a.Plan.TotalBatches,
		BatchesCompleted: a.BatchesCompleted,
		UsersPlanned:     a.Plan.TotalUsers(),
		UsersCompleted:   a.UsersCompleted,
		UsersSucceeded:   a.UsersSucceeded,
		UsersFailed:      a.UsersFailed,
		DomesticFailed:   a.DomesticFailed,
		IntlFailed:       a.InternationalFailed,
		AnalyticsCalls:   a.AnalyticsCalls,
		PagesVisited:     a.PagesVisited,
		Throughput:       p.Throughput,
		P50:              a.Durations.Quantile(50),
		P90:              a.Durations.Quantile(90),
		P99:              a.Durations.Quantile(99),
		Max:              a.Durations.Max(),
	}
}

// FailureRate is the failed share of completed users, in percent.
func (s Summary) FailureRate() float64 {
	if s.UsersCompleted == 0 {
		return 0
	}
	return float64(s.UsersFailed) / float64(s.UsersCompleted) * 100
}
