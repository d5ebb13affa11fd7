package stats

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram records session durations in milliseconds.
// It is owned by the scheduler goroutine and is not safe for concurrent use.
type Histogram struct {
	hist *hdrhistogram.Histogram
}

func NewHistogram() *Histogram {
	// 1ms to 30min, 3 significant figures
	return &Histogram{hist: hdrhistogram.New(1, int64(30*time.Minute/time.Millisecond), 3)}
}

func (h *Histogram) Record(d time.Duration) {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if ms > h.hist.HighestTrackableValue() {
		ms = h.hist.HighestTrackableValue()
	}
	_ = h.hist.RecordValue(ms)
}

// Quantile returns the duration at percentile q (0-100).
func (h *Histogram) Quantile(q float64) time.Duration {
	return time.Duration(h.hist.ValueAtQuantile(q)) * time.Millisecond
}

func (h *Histogram) Mean() time.Duration {
	return time.Duration(h.hist.Mean() * float64(time.Millisecond))
}

func (h *Histogram) Max() time.Duration {
	return time.Duration(h.hist.Max()) * time.Millisecond
}

func (h *Histogram) Count() int64 {
	return h.hist.TotalCount()
}
