// Package live renders the in-progress view of a simulation run.
package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"portalsim/internal/runner"
	"portalsim/internal/tui/components"
	"portalsim/internal/tui/styles"
)

type Model struct {
	Snap     runner.Snapshot
	Progress progress.Model

	RateLine components.Sparkline
	FailLine components.Sparkline

	lastUsers   int
	lastFailed  int
	lastElapsed time.Duration

	Width  int
	Height int
}

func NewModel() Model {
	return Model{
		Progress: progress.New(progress.WithDefaultGradient()),
		RateLine: components.NewSparkline(40, "Users/s (per batch)", styles.Active),
		FailLine: components.NewSparkline(40, "Failures (per batch)", styles.Warn),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.Snapshot:
		p := msg.Progress
		// Rate over the interval since the previous snapshot.
		if dt := (p.Elapsed - m.lastElapsed).Seconds(); dt > 0 && p.UsersDone > m.lastUsers {
			m.RateLine.Add(float64(p.UsersDone-m.lastUsers) / dt)
			m.FailLine.Add(float64(p.Failed - m.lastFailed))
		}
		m.lastUsers, m.lastFailed, m.lastElapsed = p.UsersDone, p.Failed, p.Elapsed
		m.Snap = msg
		return m, m.Progress.SetPercent(p.Percent() / 100)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-10, 10)

		half := max(msg.Width/2-4, 10)
		m.RateLine.Width = half
		m.FailLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}
	p := m.Snap.Progress

	failRate := 0.0
	if p.UsersDone > 0 {
		failRate = float64(p.Failed) / float64(p.UsersDone) * 100
	}
	var failStyle lipgloss.Style
	switch {
	case failRate > 20:
		failStyle = styles.Error
	case failRate > 5:
		failStyle = styles.Warn
	default:
		failStyle = styles.Active
	}

	eta := "--"
	if p.ETA > 0 {
		eta = p.ETA.Round(time.Second).String()
	}

	col1 := fmt.Sprintf("BATCH: %d/%d\nGROUP: %d/%d", p.BatchesDone, p.TotalBatches, m.Snap.Group, m.Snap.TotalGroups)
	col2 := fmt.Sprintf("USERS: %d/%d\nLIVE:  %d", p.UsersDone, p.TotalUsers, m.Snap.InFlight)
	col3 := failStyle.Render(fmt.Sprintf("FAIL: %d\nRATE: %.1f%%", p.Failed, failRate))
	col4 := fmt.Sprintf("BEACONS: %d\nETA:     %s", p.AnalyticsCalls, eta)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
		styles.Box.Render(col4),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RateLine.View()),
		styles.Box.Render(m.FailLine.View()),
	))
	s.WriteString("\n\n")

	split := fmt.Sprintf("%s  |  %s  |  %.2f users/s  |  elapsed %s",
		styles.Domestic.Render(fmt.Sprintf("domestic %d", p.DomesticDone)),
		styles.International.Render(fmt.Sprintf("international %d", p.InternationalDone)),
		p.Throughput,
		p.Elapsed.Round(time.Second),
	)
	s.WriteString(styles.Box.Render(split))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	return s.String()
}
