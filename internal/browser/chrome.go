package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const clickableSelector = `a[href], button`

// ChromeConfig contains configuration for the chromedp launcher.
type ChromeConfig struct {
	// RemoteURL is the DevTools websocket URL of a running Chrome. When empty a
	// new Chrome process is started for every session. Otherwise each session
	// gets its own browser context (an incognito-like profile) on that Chrome.
	RemoteURL string
	Headless  bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox    bool
	WindowWidth  int
	WindowHeight int
	Logger       *zap.Logger
}

// ChromeLauncher starts one isolated Chrome per session through the DevTools protocol.
type ChromeLauncher struct {
	cfg    ChromeConfig
	logger *zap.Logger
}

func NewChromeLauncher(cfg ChromeConfig) *ChromeLauncher {
	if cfg.WindowWidth <= 0 {
		cfg.WindowWidth = 1366
	}
	if cfg.WindowHeight <= 0 {
		cfg.WindowHeight = 768
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeLauncher{cfg: cfg, logger: logger}
}

func (l *ChromeLauncher) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, l.cfg.RemoteURL)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-sync", true),
		chromedp.WindowSize(l.cfg.WindowWidth, l.cfg.WindowHeight),
	)
	if l.cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return chromedp.NewExecAllocator(ctx, opts...)
}

// contextOptions returns the options of a session's chromedp context. A
// remote Chrome is shared, so every session opens a fresh browser context
// that is disposed when the session closes, keeping cookies and storage
// apart between users.
func (l *ChromeLauncher) contextOptions(logger *zap.Logger) []chromedp.ContextOption {
	opts := []chromedp.ContextOption{
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	}
	if l.cfg.RemoteURL != "" {
		opts = append(opts, chromedp.WithNewBrowserContext())
	}
	return opts
}

// Check starts and closes a throwaway browser.
func (l *ChromeLauncher) Check(ctx context.Context) error {
	p, err := l.Launch(ctx, SessionOptions{})
	if err != nil {
		return err
	}
	return p.Close()
}

func (l *ChromeLauncher) Launch(ctx context.Context, opts SessionOptions) (Page, error) {
	logger := l.logger
	if opts.Label != "" {
		logger = logger.With(zap.String("session", opts.Label))
	}

	allocCtx, allocCancel := l.allocator(ctx)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, l.contextOptions(logger)...)

	if opts.OnResponse != nil {
		onResponse := opts.OnResponse
		chromedp.ListenTarget(browserCtx, func(ev interface{}) {
			if e, ok := ev.(*network.EventResponseReceived); ok && e.Response != nil {
				onResponse(e.Response.URL)
			}
		})
	}

	// The first Run on a fresh context starts the browser.
	actions := []chromedp.Action{network.Enable()}
	if opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(opts.UserAgent))
	}
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &chromePage{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
	}, nil
}

type chromePage struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	once     sync.Once
	closeErr error
}

// run executes actions on the page while honouring the deadline and
// cancellation of the caller's ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) ScrollTo(ctx context.Context, fraction float64) error {
	js := fmt.Sprintf(`window.scrollTo(0, Math.floor(document.body.scrollHeight * %.3f))`, fraction)
	if err := p.run(ctx, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("scroll to %.2f: %w", fraction, err)
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, pick func(n int) int) (ClickOutcome, error) {
	var n int
	countJS := fmt.Sprintf(`document.querySelectorAll(%q).length`, clickableSelector)
	if err := p.run(ctx, chromedp.Evaluate(countJS, &n)); err != nil {
		return ClickOutcome{}, &ClickError{Err: err}
	}
	if n == 0 {
		return ClickOutcome{}, &ClickError{Err: ErrNoClickable}
	}

	idx := pick(n)
	var clicked struct {
		Tag  string `json:"tag"`
		Href string `json:"href"`
	}
	clickJS := fmt.Sprintf(`(() => {
		const el = document.querySelectorAll(%q)[%d];
		if (!el) return null;
		el.scrollIntoView({block: "center"});
		el.click();
		return {tag: el.tagName.toLowerCase(), href: el.getAttribute("href") || ""};
	})()`, clickableSelector, idx)
	if err := p.run(ctx, chromedp.Evaluate(clickJS, &clicked)); err != nil {
		return ClickOutcome{}, &ClickError{Err: err}
	}
	if clicked.Tag == "" {
		return ClickOutcome{}, &ClickError{Err: fmt.Errorf("element %d of %d detached", idx, n)}
	}

	return ClickOutcome{Index: idx, Candidates: n, Tag: clicked.Tag, Href: clicked.Href}, nil
}

// Close shuts the browser down, or only the session's tab and browser
// context on a remote Chrome. Later calls return the first result.
func (p *chromePage) Close() error {
	p.once.Do(func() {
		err := chromedp.Cancel(p.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			p.closeErr = fmt.Errorf("close browser: %w", err)
		}
		p.cancel()
		p.allocCancel()
	})
	return p.closeErr
}
