// Package app is the full-screen dashboard shown while a run is in progress.
package app

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"portalsim/internal/runner"
	"portalsim/internal/stats"
	"portalsim/internal/tui/live"
	"portalsim/internal/tui/result"
	"portalsim/internal/tui/styles"
)

type SnapshotMsg runner.Snapshot

// DoneMsg carries the return values of runner.Run.
type DoneMsg struct {
	Summary stats.Summary
	Err     error
}

type Model struct {
	Updates runner.UpdateChan
	Cancel  context.CancelFunc

	Title    string
	Live     live.Model
	Result   result.Model
	Done     bool
	Stopping bool
	Err      error

	Width  int
	Height int
}

func NewModel(title string, updates runner.UpdateChan, cancel context.CancelFunc) Model {
	return Model{
		Title:   title,
		Updates: updates,
		Cancel:  cancel,
		Live:    live.NewModel(),
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.Updates)
}

func waitForUpdate(sub runner.UpdateChan) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub
		if !ok {
			return nil
		}
		return SnapshotMsg(snap)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.Done {
				return m, tea.Quit
			}
			// First press stops after the current group; the run then reports Done.
			if !m.Stopping && m.Cancel != nil {
				m.Cancel()
				m.Stopping = true
			}
			return m, nil
		}
		if m.Done {
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		m.Result, _ = m.Result.Update(msg)
		return m, cmd

	case SnapshotMsg:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(runner.Snapshot(msg))
		if m.Done {
			return m, cmd
		}
		return m, tea.Batch(cmd, waitForUpdate(m.Updates))

	case DoneMsg:
		m.Done = true
		m.Err = msg.Err
		m.Result = result.NewModel(msg.Summary)
		m.Result.Width, m.Result.Height = m.Width, m.Height
		return m, nil
	}

	var cmd tea.Cmd
	m.Live, cmd = m.Live.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	header := styles.Title.Render(m.Title)

	var content string
	if m.Done {
		content = m.Result.View()
	} else {
		content = m.Live.View()
	}
	body := styles.Panel.Width(m.Width - 2).Render(content)

	keys := []string{styles.RenderKey("q", "Stop")}
	if m.Stopping && !m.Done {
		keys = []string{styles.Warn.Render("stopping after the current group...")}
	}
	if m.Done {
		keys = []string{styles.RenderKey("any key", "Quit")}
	}
	footer := styles.FooterBase.Width(m.Width).Render(strings.Join(keys, "   "))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// Run shows the dashboard while run executes and returns run's results once
// both have finished. cancel is invoked when the user stops the run.
func Run(title string, updates runner.UpdateChan, cancel context.CancelFunc, run func() (stats.Summary, error), opts ...tea.ProgramOption) (stats.Summary, error) {
	p := tea.NewProgram(NewModel(title, updates, cancel), append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	done := make(chan DoneMsg, 1)
	go func() {
		summary, err := run()
		msg := DoneMsg{Summary: summary, Err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return stats.Summary{}, err
	}
	// The program can only exit via Quit after DoneMsg, or on a terminal error.
	out := <-done
	return out.Summary, out.Err
}
