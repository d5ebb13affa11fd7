package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"portalsim/internal/storage"
	"portalsim/internal/tui/styles"
)

// Model is a browsable table of past runs.
type Model struct {
	Records []storage.Record
	Table   table.Model

	Width  int
	Height int
}

func NewModel(records []storage.Record) Model {
	columns := []table.Column{
		{Title: "Time", Width: 20},
		{Title: "Target", Width: 32},
		{Title: "Users", Width: 10},
		{Title: "Failed", Width: 8},
		{Title: "Beacons", Width: 8},
		{Title: "P50", Width: 8},
		{Title: "State", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	t.SetRows(Rows(records))

	return Model{Records: records, Table: t}
}

// Rows converts records into table rows, keeping their order.
func Rows(records []storage.Record) []table.Row {
	rows := make([]table.Row, len(records))
	for i, r := range records {
		state := "completed"
		if r.Summary.Interrupted {
			state = "interrupted"
		}
		rows[i] = table.Row{
			r.Timestamp.Local().Format(time.DateTime),
			r.Config.TargetURL,
			fmt.Sprintf("%d/%d", r.Summary.UsersCompleted, r.Summary.UsersPlanned),
			fmt.Sprintf("%d", r.Summary.UsersFailed),
			fmt.Sprintf("%d", r.Summary.AnalyticsCalls),
			r.Summary.P50.Round(time.Second).String(),
			state,
		}
	}
	return rows
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return styles.Box.Render(m.Table.View()) + "\n" +
		styles.RenderKey("↑/↓", "Select") + "   " + styles.RenderKey("q", "Quit") + "\n"
}
