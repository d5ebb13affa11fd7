// Package session runs one simulated user's browsing session end to end.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"portalsim/internal/analytics"
	"portalsim/internal/browser"
	"portalsim/internal/pacing"
	"portalsim/internal/workload"
)

// ErrLaunch marks a session whose browser never started.
var ErrLaunch = errors.New("session: browser launch failed")

// DefaultScrollSteps precede the profile's own scroll depth on every page.
var DefaultScrollSteps = []float64{0.3, 0.6}

type Options struct {
	BaseURL           string
	Pages             []string
	NavigationTimeout time.Duration
	ClickProbability  float64
	ScrollSteps       []float64
	Matcher           analytics.Matcher
	Pacing            pacing.Policy
	Logger            *zap.Logger
}

// Result is the terminal outcome of one session. A nil Err means success.
type Result struct {
	User           workload.SimulatedUser
	Pages          []string
	AnalyticsCalls int
	Clicks         int
	Started        time.Time
	Duration       time.Duration
	Err            error
}

func (r Result) Success() bool {
	return r.Err == nil
}

type Runner struct {
	launcher browser.Launcher
	opts     Options
	logger   *zap.Logger
}

func NewRunner(launcher browser.Launcher, opts Options) *Runner {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.ScrollSteps == nil {
		opts.ScrollSteps = DefaultScrollSteps
	}
	if opts.Pacing == nil {
		opts.Pacing = pacing.DefaultHuman()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{launcher: launcher, opts: opts, logger: opts.Logger}
}

// Run executes user's session. It never returns an error: every failure is
// recorded in Result.Err and the session ends early.
func (r *Runner) Run(ctx context.Context, user workload.SimulatedUser, rng *rand.Rand) Result {
	res := Result{User: user, Started: time.Now()}
	var beacons atomic.Int64

	res.Err = r.browse(ctx, user, rng, &res, &beacons)
	res.AnalyticsCalls = int(beacons.Load())
	res.Duration = time.Since(res.Started)

	r.log(res)
	return res
}

func (r *Runner) browse(ctx context.Context, user workload.SimulatedUser, rng *rand.Rand, res *Result, beacons *atomic.Int64) (err error) {
	page, err := r.launcher.Launch(ctx, browser.SessionOptions{
		Label:     fmt.Sprintf("user-%d", user.ID),
		UserAgent: user.UserAgent,
		OnResponse: func(url string) {
			if r.opts.Matcher.Match(url) {
				beacons.Add(1)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			r.logger.Debug("browser close failed", zap.Int("user", user.ID), zap.Error(cerr))
		}
	}()

	for _, path := range SelectPages(r.opts.Pages, user.Profile.PageVisits, rng) {
		if err := r.visit(ctx, page, user, path, rng, res); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) visit(ctx context.Context, page browser.Page, user workload.SimulatedUser, path string, rng *rand.Rand, res *Result) error {
	navCtx, cancel := context.WithTimeout(ctx, r.opts.NavigationTimeout)
	err := page.Navigate(navCtx, JoinURL(r.opts.BaseURL, path))
	cancel()
	if err != nil {
		return err
	}
	res.Pages = append(res.Pages, path)

	steps := append(append([]float64(nil), r.opts.ScrollSteps...), user.Profile.ScrollDepth)
	for i, frac := range steps {
		if err := page.ScrollTo(ctx, frac); err != nil {
			return err
		}
		if i < len(steps)-1 {
			if err := pacing.Sleep(ctx, r.opts.Pacing.Delay(pacing.StepScroll, user.Profile, rng)); err != nil {
				return err
			}
		}
	}

	if rng.Float64() < r.opts.ClickProbability {
		outcome, err := page.Click(ctx, rng.Intn)
		if err != nil {
			var clickErr *browser.ClickError
			if !errors.As(err, &clickErr) {
				clickErr = &browser.ClickError{Err: err}
			}
			r.logger.Debug("click skipped", zap.Int("user", user.ID), zap.String("page", path), zap.Error(clickErr))
		} else {
			res.Clicks++
			r.logger.Debug("clicked",
				zap.Int("user", user.ID),
				zap.String("page", path),
				zap.String("tag", outcome.Tag),
				zap.String("href", outcome.Href),
				zap.Int("candidates", outcome.Candidates))
		}
	}

	return pacing.Sleep(ctx, r.opts.Pacing.Delay(pacing.StepPage, user.Profile, rng))
}

func (r *Runner) log(res Result) {
	fields := []zap.Field{
		zap.Int("user", res.User.ID),
		zap.String("category", string(res.User.Category)),
		zap.String("city", res.User.Origin.City),
		zap.String("region", res.User.Origin.Region),
		zap.String("profile", string(res.User.Profile.Kind)),
		zap.Int("pages", len(res.Pages)),
		zap.Int("analytics_calls", res.AnalyticsCalls),
		zap.Duration("duration", res.Duration),
	}
	if res.Err != nil {
		r.logger.Warn("session failed", append(fields, zap.Error(res.Err))...)
		return
	}
	r.logger.Info("session completed", fields...)
}

// SelectPages returns n distinct pages in random order: a full shuffle of a
// copy of pages, truncated to n.
func SelectPages(pages []string, n int, rng *rand.Rand) []string {
	out := append([]string(nil), pages...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if n < len(out) {
		out = out[:n]
	}
	return out
}

func JoinURL(base, path string) string {
	if path == "" || path == "/" {
		return strings.TrimRight(base, "/") + "/"
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
