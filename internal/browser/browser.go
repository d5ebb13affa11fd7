// Package browser abstracts the isolated browser a simulated user drives.
package browser

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoClickable is returned by Click when the page renders no link or button.
var ErrNoClickable = errors.New("browser: no clickable elements")

// SessionOptions configure one launched page.
type SessionOptions struct {
	// Label identifies the session in logs, e.g. "user-7".
	Label     string
	UserAgent string
	// OnResponse is called for every network response the page receives,
	// possibly from another goroutine.
	OnResponse func(url string)
}

// Launcher acquires isolated browser pages.
type Launcher interface {
	// Check verifies a browser can be started at all.
	Check(ctx context.Context) error
	Launch(ctx context.Context, opts SessionOptions) (Page, error)
}

// Page is one isolated browser execution context. Close must be called
// exactly once by the owner, whatever happened before.
type Page interface {
	Navigate(ctx context.Context, url string) error
	ScrollTo(ctx context.Context, fraction float64) error
	// Click clicks one rendered link or button; pick chooses its index out of n.
	Click(ctx context.Context, pick func(n int) int) (ClickOutcome, error)
	Close() error
}

type ClickOutcome struct {
	Index      int
	Candidates int
	Tag        string
	Href       string
}

// ClickError wraps a best-effort click failure. Callers treat it as non-fatal.
type ClickError struct {
	Err error
}

func (e *ClickError) Error() string {
	return fmt.Sprintf("click: %v", e.Err)
}

func (e *ClickError) Unwrap() error {
	return e.Err
}
