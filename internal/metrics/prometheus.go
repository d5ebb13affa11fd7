// Package metrics exports live simulation metrics for Prometheus to scrape.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portalsim/internal/runner"
	"portalsim/internal/session"
)

const namespace = "portalsim"

// Exporter is a runner.Observer backed by its own registry.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Exporter struct {
	mu sync.Mutex

	registry *prometheus.Registry

	sessionsTotal   *prometheus.CounterVec
	analyticsTotal  prometheus.Counter
	pagesTotal      prometheus.Counter
	sessionDuration prometheus.Histogram
	batchesDone     prometheus.Gauge
	usersPerSecond  prometheus.Gauge
	progressPercent prometheus.Gauge

	server    *http.Server
	ln        net.Listener
	lastError error
}

var _ runner.Observer = (*Exporter)(nil)

func NewExporter() *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry()}

	e.sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Settled user sessions by category and outcome.",
		},
		[]string{"category", "outcome"},
	)
	e.analyticsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_calls_total",
		Help:      "Analytics beacons observed across all sessions.",
	})
	e.pagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_visited_total",
		Help:      "Pages successfully loaded across all sessions.",
	})
	e.sessionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_duration_seconds",
		Help:      "Wall time of a user session, from launch to close.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
	})
	e.batchesDone = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "batches_completed",
		Help:      "Batches whose sessions have all settled.",
	})
	e.usersPerSecond = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "users_per_second",
		Help:      "Completed users divided by elapsed run time.",
	})
	e.progressPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "progress_percent",
		Help:      "Share of planned users that have settled (0-100).",
	})

	e.registry.MustRegister(
		e.sessionsTotal,
		e.analyticsTotal,
		e.pagesTotal,
		e.sessionDuration,
		e.batchesDone,
		e.usersPerSecond,
		e.progressPercent,
	)
	return e
}

// TrackInFlight registers a gauge read from inFlight on every scrape. Call it
// once, before Start.
func (e *Exporter) TrackInFlight(inFlight func() int64) {
	e.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_in_flight",
		Help:      "Browser sessions currently running.",
	}, func() float64 { return float64(inFlight()) }))
}

func (e *Exporter) SessionFinished(res session.Result) {
	outcome := "success"
	if !res.Success() {
		outcome = "failure"
	}
	e.sessionsTotal.WithLabelValues(string(res.User.Category), outcome).Inc()
	e.analyticsTotal.Add(float64(res.AnalyticsCalls))
	e.pagesTotal.Add(float64(len(res.Pages)))
	e.sessionDuration.Observe(res.Duration.Seconds())
}

func (e *Exporter) BatchCompleted(snap runner.Snapshot) {
	e.batchesDone.Set(float64(snap.Progress.BatchesDone))
	e.usersPerSecond.Set(snap.Progress.Throughput)
	e.progressPercent.Set(snap.Progress.Percent())
}

// Handler serves /metrics and /health.
func (e *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Start listens on addr (":0" picks a free port) and serves in the background.
func (e *Exporter) Start(addr string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("starting metrics exporter: %w", err)
	}
	e.ln = ln
	e.server = &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv := e.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.mu.Lock()
			e.lastError = err
			e.mu.Unlock()
		}
	}()
	return nil
}

func (e *Exporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	srv := e.server
	e.server = nil
	e.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Addr is the bound listen address, empty before Start.
func (e *Exporter) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return ""
	}
	return e.ln.Addr().String()
}

func (e *Exporter) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
