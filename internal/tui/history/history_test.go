package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalsim/internal/config"
	"portalsim/internal/stats"
	"portalsim/internal/storage"
)

func TestRows(t *testing.T) {
	records := []storage.Record{
		{
			ID:        "b",
			Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			Config:    config.Config{TargetURL: "https://portal.example.gov"},
			Summary:   stats.Summary{UsersPlanned: 100, UsersCompleted: 40, UsersFailed: 3, AnalyticsCalls: 70, Interrupted: true},
		},
		{
			ID:      "a",
			Config:  config.Config{TargetURL: "http://localhost:8080"},
			Summary: stats.Summary{UsersPlanned: 10, UsersCompleted: 10, P50: 4 * time.Second},
		},
	}

	rows := Rows(records)
	require.Len(t, rows, 2)
	assert.Equal(t, "https://portal.example.gov", rows[0][1])
	assert.Equal(t, "40/100", rows[0][2])
	assert.Equal(t, "interrupted", rows[0][6])
	assert.Equal(t, "4s", rows[1][5])
	assert.Equal(t, "completed", rows[1][6])

	m := NewModel(records)
	assert.Len(t, m.Table.Rows(), 2)
}
