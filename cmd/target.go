package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"portalsim/internal/logging"
	"portalsim/internal/target"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Serve a mock portal to simulate against",
	Long: `Serves the default portal pages (/, /services, /about, /contact). Every page
posts a view to /_vercel/insights/view; GET /_stats returns the counts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		jitter, _ := cmd.Flags().GetDuration("jitter")
		failRate, _ := cmd.Flags().GetFloat64("failure-rate")

		logger, err := logging.New(logging.Options{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		})
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := target.New(target.ServerConfig{
			Port:        port,
			Jitter:      jitter,
			FailureRate: failRate,
			Logger:      logger,
		})
		if err := srv.Start(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Mock portal running on %s\n", srv.URL())

		<-ctx.Done()
		st := srv.Stats()
		logger.Info("mock portal stopped", zap.Int64("page_views", st.PageViews), zap.Int64("beacons", st.Beacons))
		return nil
	},
}

func init() {
	targetCmd.Flags().IntP("port", "p", 8080, "Port to serve the mock portal on")
	targetCmd.Flags().Duration("jitter", 200*time.Millisecond, "Max random delay added to each page")
	targetCmd.Flags().Float64("failure-rate", 0, "Share of page requests answered with 500")
}
