package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"portalsim/internal/storage"
	"portalsim/internal/tui/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		interactive, _ := cmd.Flags().GetBool("interactive")

		path, err := historyPath(viper.GetString("history"))
		if err != nil {
			return err
		}
		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(limit)
		if err != nil {
			return err
		}

		if interactive {
			_, err := tea.NewProgram(history.NewModel(records)).Run()
			return err
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintf(out, "No runs recorded in %s\n", path)
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tTARGET\tUSERS\tFAILED\tBEACONS\tP50")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\n",
				r.ID,
				r.Timestamp.Local().Format(time.DateTime),
				r.Config.TargetURL,
				r.Summary.UsersCompleted, r.Summary.UsersPlanned,
				r.Summary.UsersFailed,
				r.Summary.AnalyticsCalls,
				r.Summary.P50.Round(time.Millisecond),
			)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Show at most this many runs (0 = all)")
	historyCmd.Flags().BoolP("interactive", "i", false, "Browse runs in a table")
}
