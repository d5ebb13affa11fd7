// Package target serves a small mock government portal for the harness to
// browse. Every page reports a view to an analytics beacon endpoint.
package target

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// BeaconPath matches the default analytics patterns of the harness.
const BeaconPath = "/_vercel/insights/view"

type ServerConfig struct {
	Port int
	// Jitter is the upper bound of a random delay added to each page.
	Jitter time.Duration
	// FailureRate is the share of page requests answered with 500.
	FailureRate float64
	Logger      *zap.Logger
}

type page struct {
	Path  string
	Title string
	Intro string
}

var pages = []page{
	{"/", "City Services Portal", "Pay bills, request permits and find public information in one place."},
	{"/services", "Online Services", "Renew a license, report a pothole or book an appointment."},
	{"/about", "About the Department", "Our mission, leadership and annual performance reports."},
	{"/contact", "Contact Us", "Phone lines, office hours and the accessibility help desk."},
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Page.Title}}</title>
<style>body{font-family:sans-serif;margin:0 auto;max-width:48rem}section{min-height:60vh}</style>
</head>
<body>
<nav>{{range .Nav}}<a href="{{.Path}}">{{.Title}}</a> {{end}}</nav>
<h1>{{.Page.Title}}</h1>
<p>{{.Page.Intro}}</p>
{{range .Sections}}<section><h2>Section {{.}}</h2><p>Information for residents and visitors.</p><button type="button">Learn more</button></section>
{{end}}
<footer><a href="/contact">Feedback</a></footer>
<script>
fetch("{{.Beacon}}", {method: "POST", keepalive: true, headers: {"Content-Type": "application/json"},
  body: JSON.stringify({path: location.pathname, ref: document.referrer})});
</script>
</body>
</html>
`))

// Server counts page views and beacons. It is safe for concurrent use.
type Server struct {
	cfg    ServerConfig
	logger *zap.Logger

	pageViews atomic.Int64
	beacons   atomic.Int64

	mu     sync.Mutex
	rng    *rand.Rand
	server *http.Server
	ln     net.Listener
}

func New(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Stats is the body of GET /_stats.
type Stats struct {
	PageViews int64 `json:"page_views"`
	Beacons   int64 `json:"beacons"`
}

func (s *Server) Stats() Stats {
	return Stats{PageViews: s.pageViews.Load(), Beacons: s.beacons.Load()}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	for _, p := range pages {
		pattern := p.Path
		if pattern == "/" {
			pattern = "/{$}"
		}
		mux.HandleFunc("GET "+pattern, s.servePage(p))
	}

	mux.HandleFunc("POST "+BeaconPath, func(w http.ResponseWriter, r *http.Request) {
		s.beacons.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /_stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.Stats())
	})

	return mux
}

func (s *Server) servePage(p page) http.HandlerFunc {
	data := struct {
		Page     page
		Nav      []page
		Sections []int
		Beacon   string
	}{p, pages, []int{1, 2, 3, 4}, BeaconPath}

	return func(w http.ResponseWriter, r *http.Request) {
		delay, fail := s.roll()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if fail {
			http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
			return
		}

		s.pageViews.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pageTmpl.Execute(w, data); err != nil {
			s.logger.Warn("render page", zap.String("path", p.Path), zap.Error(err))
		}
	}
}

func (s *Server) roll() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var delay time.Duration
	if s.cfg.Jitter > 0 {
		delay = time.Duration(s.rng.Int63n(int64(s.cfg.Jitter)))
	}
	return delay, s.rng.Float64() < s.cfg.FailureRate
}

// Start listens on cfg.Port (0 picks a free port) and serves until ctx is
// cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}

	s.mu.Lock()
	s.ln = ln
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("mock portal listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("mock portal stopped", zap.Error(err))
		}
	}()
	return nil
}

// URL is the base URL of a started server.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
