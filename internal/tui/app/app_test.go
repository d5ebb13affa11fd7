package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalsim/internal/runner"
	"portalsim/internal/stats"
)

func snap(done, total int) SnapshotMsg {
	return SnapshotMsg(runner.Snapshot{
		State: runner.Running,
		Progress: stats.Progress{
			BatchesDone: done / 5, TotalBatches: total / 5,
			UsersDone: done, TotalUsers: total,
			Elapsed: time.Duration(done) * time.Second,
		},
	})
}

func TestModel_SnapshotsFeedLiveView(t *testing.T) {
	updates := make(runner.UpdateChan, 1)
	m := NewModel("portalsim", updates, func() {})

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	next, cmd := next.Update(snap(5, 20))
	m = next.(Model)

	assert.Equal(t, 5, m.Live.Snap.Progress.UsersDone)
	assert.NotNil(t, cmd, "keeps listening for updates")
	assert.Contains(t, m.View(), "USERS: 5/20")
}

func TestModel_FirstQuitCancelsRun(t *testing.T) {
	cancelled := 0
	m := NewModel("portalsim", make(runner.UpdateChan), func() { cancelled++ })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(Model)
	assert.Nil(t, cmd, "the dashboard stays up until the run returns")
	assert.True(t, m.Stopping)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(Model)
	assert.Equal(t, 1, cancelled)
}

func TestModel_DoneShowsResultAndQuits(t *testing.T) {
	m := NewModel("portalsim", make(runner.UpdateChan), func() {})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	next, _ = next.Update(DoneMsg{Summary: stats.Summary{UsersCompleted: 10, UsersPlanned: 10, Interrupted: true}, Err: context.Canceled})
	m = next.(Model)

	require.True(t, m.Done)
	assert.ErrorIs(t, m.Err, context.Canceled)
	assert.Contains(t, m.View(), "Simulation Interrupted")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
