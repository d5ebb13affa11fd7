// Package browsertest provides an in-memory browser.Launcher for tests.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"portalsim/internal/browser"
)

var ErrTimeout = errors.New("browsertest: navigation timeout")

type EventKind string

const (
	EventLaunch   EventKind = "launch"
	EventNavigate EventKind = "navigate"
	EventClose    EventKind = "close"
)

type Event struct {
	Label string
	Kind  EventKind
	URL   string
	At    time.Time
}

// Launcher is a fake browser.Launcher. Configure the exported fields before
// use; they are read concurrently by sessions.
type Launcher struct {
	CheckErr  error
	LaunchErr func(label string) error
	// NavigateErr decides whether navigating label's page to url fails.
	NavigateErr func(label, url string) error
	ScrollErr   error
	ClickErr    error
	// NoClickable makes every page render zero links or buttons.
	NoClickable bool
	// Beacons are response URLs emitted after each successful navigation,
	// in addition to the page URL itself.
	Beacons       []string
	NavigateDelay time.Duration

	mu      sync.Mutex
	events  []Event
	scrolls map[string][]float64
	clicks  int
	open    int
}

func (l *Launcher) Check(ctx context.Context) error {
	return l.CheckErr
}

func (l *Launcher) Launch(ctx context.Context, opts browser.SessionOptions) (browser.Page, error) {
	if l.LaunchErr != nil {
		if err := l.LaunchErr(opts.Label); err != nil {
			return nil, err
		}
	}
	l.record(opts.Label, EventLaunch, "")
	l.mu.Lock()
	l.open++
	l.mu.Unlock()
	return &page{l: l, opts: opts}, nil
}

func (l *Launcher) record(label string, kind EventKind, url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, Event{Label: label, Kind: kind, URL: url, At: time.Now()})
}

// Events returns a copy of everything recorded so far.
func (l *Launcher) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *Launcher) Count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Open is the number of launched pages not yet closed.
func (l *Launcher) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

func (l *Launcher) Scrolls(label string) []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]float64(nil), l.scrolls[label]...)
}

func (l *Launcher) Clicks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.clicks
}

type page struct {
	l      *Launcher
	opts   browser.SessionOptions
	closed bool
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if p.l.NavigateDelay > 0 {
		t := time.NewTimer(p.l.NavigateDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if p.l.NavigateErr != nil {
		if err := p.l.NavigateErr(p.opts.Label, url); err != nil {
			return err
		}
	}
	p.l.record(p.opts.Label, EventNavigate, url)
	if p.opts.OnResponse != nil {
		p.opts.OnResponse(url)
		for _, b := range p.l.Beacons {
			p.opts.OnResponse(b)
		}
	}
	return nil
}

func (p *page) ScrollTo(ctx context.Context, fraction float64) error {
	if p.l.ScrollErr != nil {
		return p.l.ScrollErr
	}
	p.l.mu.Lock()
	defer p.l.mu.Unlock()
	if p.l.scrolls == nil {
		p.l.scrolls = make(map[string][]float64)
	}
	p.l.scrolls[p.opts.Label] = append(p.l.scrolls[p.opts.Label], fraction)
	return nil
}

func (p *page) Click(ctx context.Context, pick func(n int) int) (browser.ClickOutcome, error) {
	if p.l.NoClickable {
		return browser.ClickOutcome{}, &browser.ClickError{Err: browser.ErrNoClickable}
	}
	if p.l.ClickErr != nil {
		return browser.ClickOutcome{}, &browser.ClickError{Err: p.l.ClickErr}
	}
	const candidates = 4
	idx := pick(candidates)
	p.l.mu.Lock()
	p.l.clicks++
	p.l.mu.Unlock()
	return browser.ClickOutcome{Index: idx, Candidates: candidates, Tag: "a", Href: "/services"}, nil
}

// Close panics on a second call so tests catch double releases.
func (p *page) Close() error {
	if p.closed {
		panic("browsertest: page closed twice")
	}
	p.closed = true
	p.l.record(p.opts.Label, EventClose, "")
	p.l.mu.Lock()
	p.l.open--
	p.l.mu.Unlock()
	return nil
}
