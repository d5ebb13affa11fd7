package result

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"portalsim/internal/stats"
	"portalsim/internal/tui/styles"
)

type Model struct {
	Summary stats.Summary

	Width  int
	Height int
}

func NewModel(s stats.Summary) Model {
	return Model{Summary: s}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.Width = msg.Width
		m.Height = msg.Height
	}
	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}
	sum := m.Summary

	title := "Simulation Complete"
	if sum.Interrupted {
		title = "Simulation Interrupted"
	}
	s.WriteString(styles.Title.Render(title))
	s.WriteString("\n\n")

	s.WriteString(styles.Active.Render("Overview"))
	s.WriteString("\n")
	overview := fmt.Sprintf(
		"Batches:         %d/%d\nUsers:           %d/%d\nSucceeded:       %d\nFailed:          %d (%.1f%%)\nAnalytics Calls: %d\nThroughput:      %.2f users/s",
		sum.BatchesCompleted, sum.TotalBatches,
		sum.UsersCompleted, sum.UsersPlanned,
		sum.UsersSucceeded,
		sum.UsersFailed, sum.FailureRate(),
		sum.AnalyticsCalls,
		sum.Throughput,
	)
	s.WriteString(styles.Box.Render(overview))
	s.WriteString("\n\n")

	s.WriteString(styles.Active.Render("Session Duration"))
	s.WriteString("\n")
	durations := fmt.Sprintf("P50: %s\nP90: %s\nP99: %s\nMax: %s",
		sum.P50.Round(time.Millisecond),
		sum.P90.Round(time.Millisecond),
		sum.P99.Round(time.Millisecond),
		sum.Max.Round(time.Millisecond),
	)
	s.WriteString(styles.Box.Render(durations))

	s.WriteString("\n\n")
	s.WriteString(styles.Subtle.Render("Press q to quit"))
	return s.String()
}
