package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"portalsim/internal/banner"
	"portalsim/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "portalsim",
	Short: "portalsim - browser traffic simulator for public portals",
	Long: `
portalsim drives batches of headless Chrome sessions against a web portal,
each one a synthetic visitor with its own locality, user agent and reading
behaviour, and reports how many analytics beacons the portal emitted.

Flags override PORTALSIM_* environment variables, and
environment variables override the config file ($HOME/.portalsim.yaml).`,
	SilenceUsage: true,
	RunE:         runSimulation,
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		_ = cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagKeys maps root flags to their config keys.
var flagKeys = map[string]string{
	"url":                "url",
	"pages":              "pages",
	"batches":            "batches",
	"target-users":       "target_users",
	"users-per-batch":    "users_per_batch",
	"concurrent-batches": "concurrent_batches",
	"domestic":           "composition.domestic",
	"international":      "composition.international",
	"group-pause":        "group_pause",
	"launch-rate":        "launch_rate",
	"seed":               "seed",
	"nav-timeout":        "session.nav_timeout",
	"click-probability":  "session.click_probability",
	"remote-browser":     "browser.remote_url",
	"headful":            "browser.headful",
	"no-sandbox":         "browser.no_sandbox",
	"out":                "out",
	"metrics-addr":       "metrics_addr",
	"history":            "history",
	"tui":                "tui",
	"log-level":          "log.level",
	"log-format":         "log.format",
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(targetCmd, historyCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.portalsim.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")
	// history is shared by the run and the history subcommand.
	rootCmd.PersistentFlags().String("history", "", "bbolt file of saved run summaries (bare flag: ~/.portalsim/history.db)")
	rootCmd.PersistentFlags().Lookup("history").NoOptDefVal = defaultHistory

	f := rootCmd.Flags()
	f.StringP("url", "u", "http://localhost:8080", "Base URL of the portal")
	f.StringSlice("pages", config.DefaultPages, "Relative paths sessions sample from")
	f.IntP("batches", "b", 20, "Number of batches")
	f.Int("target-users", 0, "Total users to simulate (derives --batches)")
	f.IntP("users-per-batch", "n", 5, "Users per batch")
	f.IntP("concurrent-batches", "c", 2, "Batches run at the same time")
	f.Int("domestic", 4, "Domestic share of the composition ratio")
	f.Int("international", 1, "International share of the composition ratio")
	f.Duration("group-pause", 2*time.Second, "Pause between groups of batches")
	f.Float64("launch-rate", 0, "Max browser launches per second (0 = unlimited)")
	f.Int64("seed", 0, "Random seed (0 = time based)")
	f.Duration("nav-timeout", 30*time.Second, "Per-page navigation timeout")
	f.Float64("click-probability", 0.4, "Chance of one random click per page")
	f.String("remote-browser", "", "DevTools websocket URL of a running Chrome")
	f.Bool("headful", false, "Show the browser windows")
	f.Bool("no-sandbox", false, "Run Chrome without its sandbox (containers, root)")
	f.StringP("out", "o", "", "Write per-session reports to <prefix>.csv and <prefix>.json")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	f.Bool("tui", false, "Show the live dashboard instead of progress lines")

	bindFlags(rootCmd.PersistentFlags())
	bindFlags(f)
}

func bindFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(fl *pflag.Flag) {
		if key, ok := flagKeys[fl.Name]; ok {
			_ = viper.BindPFlag(key, fl)
		}
	})
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".portalsim")
		}
	}
	viper.SetEnvPrefix("PORTALSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}
}
