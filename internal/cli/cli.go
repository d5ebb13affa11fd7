// Package cli prints run progress and the final report to a plain terminal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"portalsim/internal/banner"
	"portalsim/internal/config"
	"portalsim/internal/runner"
	"portalsim/internal/session"
	"portalsim/internal/stats"
	"portalsim/internal/tui/styles"
)

const rule = "======================================================================"

// Console is a runner.Observer that writes one progress line per settled
// batch and tallies failures for the summary. The runner calls it from a
// single goroutine.
type Console struct {
	out          io.Writer
	renderer     *lipgloss.Renderer
	failures     map[string]int
	hideProgress bool
}

var _ runner.Observer = (*Console)(nil)

func NewConsole(out io.Writer) *Console {
	return &Console{
		out:      out,
		renderer: lipgloss.NewRenderer(out),
		failures: make(map[string]int),
	}
}

// HideProgress stops the per-batch lines while failures are still tallied,
// for runs where the dashboard owns the terminal.
func (c *Console) HideProgress() {
	c.hideProgress = true
}

func (c *Console) PrintHeader(cfg config.Config, runID string) {
	fmt.Fprint(c.out, banner.Render(c.renderer))
	fmt.Fprintf(c.out, "\nSTARTING PORTAL SIMULATION %s\n", runID)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "Target URL  : %s\n", cfg.TargetURL)
	fmt.Fprintf(c.out, "Pages       : %s\n", strings.Join(cfg.Pages, ", "))
	fmt.Fprintf(c.out, "Batches     : %d x %d users (%d concurrent)\n", cfg.TotalBatches, cfg.UsersPerBatch, cfg.ConcurrentBatches)
	fmt.Fprintf(c.out, "Total Users : %d\n", cfg.TotalUsers())
	fmt.Fprintf(c.out, "Composition : %s domestic:international\n", cfg.Composition)
	fmt.Fprintf(c.out, "Group Pause : %s\n", cfg.GroupPause)
	fmt.Fprintf(c.out, "Nav Timeout : %s\n", cfg.Session.NavigationTimeout)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintln(c.out)
}

func (c *Console) SessionFinished(res session.Result) {
	if res.Err != nil {
		c.failures[failureKind(res.Err)]++
	}
}

func (c *Console) BatchCompleted(snap runner.Snapshot) {
	if c.hideProgress {
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", progressBar(snap.Progress.Percent()/100, 20), snap.Progress)
}

// failureKind buckets session errors so the report stays short.
func failureKind(err error) string {
	switch {
	case errors.Is(err, session.ErrLaunch):
		return "browser launch failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "navigation timeout"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return "page error"
	}
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	filled = max(0, min(filled, width))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func (c *Console) PrintSummary(s stats.Summary) {
	title := "SIMULATION RESULTS"
	if s.Interrupted {
		title += " (interrupted)"
	}

	fmt.Fprintf(c.out, "\n%s\n", c.renderer.NewStyle().Inherit(styles.Title).Render(title))
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "Run ID          : %s\n", s.RunID)
	fmt.Fprintf(c.out, "Total Duration  : %s\n", s.Elapsed.Round(time.Second))
	fmt.Fprintf(c.out, "Batches         : %d/%d\n", s.BatchesCompleted, s.TotalBatches)
	fmt.Fprintf(c.out, "Users Completed : %d/%d\n", s.UsersCompleted, s.UsersPlanned)
	fmt.Fprintf(c.out, "Succeeded       : %d\n", s.UsersSucceeded)
	fmt.Fprintf(c.out, "Failed          : %d (%.1f%%) domestic %d / international %d\n",
		s.UsersFailed, s.FailureRate(), s.DomesticFailed, s.IntlFailed)
	fmt.Fprintf(c.out, "Pages Visited   : %d\n", s.PagesVisited)
	fmt.Fprintf(c.out, "Analytics Calls : %d\n", s.AnalyticsCalls)
	fmt.Fprintf(c.out, "Throughput      : %.2f users/s\n", s.Throughput)
	fmt.Fprintf(c.out, "\nSESSION DURATIONS\n")
	fmt.Fprintf(c.out, "   P50 : %s\n", s.P50.Round(time.Millisecond))
	fmt.Fprintf(c.out, "   P90 : %s\n", s.P90.Round(time.Millisecond))
	fmt.Fprintf(c.out, "   P99 : %s\n", s.P99.Round(time.Millisecond))
	fmt.Fprintf(c.out, "   Max : %s\n", s.Max.Round(time.Millisecond))

	if len(c.failures) > 0 {
		kinds := make([]string, 0, len(c.failures))
		for k := range c.failures {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		fmt.Fprintf(c.out, "\nFAILURE SUMMARY\n")
		for _, k := range kinds {
			fmt.Fprintf(c.out, "   %d x %s\n", c.failures[k], k)
		}
	}
	fmt.Fprintln(c.out, rule)
}

// PrintReports lists the files written for a run.
func (c *Console) PrintReports(paths ...string) {
	if len(paths) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\nReports saved to %s\n", strings.Join(paths, ", "))
}
