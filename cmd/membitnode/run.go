package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"membitnode/pkg/config"
	"membitnode/pkg/logger"
	"membitnode/pkg/ui/tui"

	"membitnode/internal/runner"
)

var (
	// Run command flags
	accountsFile   string
	proxiesFile    string
	apiBaseURL     string
	scrollInterval time.Duration
	noDashboard    bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start one node per stored account",
	Long: `Start the node fleet: one node per account in the accounts file, each
assigned a proxy from the proxy file in round-robin order.

Every node scrolls the home timeline on its own schedule, submits new posts
with their engagement counts to the rewards API, and polls the current epoch
for points. The dashboard shows one node at a time; use the arrow keys to
page through the fleet and 'r' to reload the account and proxy files.`,
	Example: `  # Start with the default account.txt and proxy.txt
  membitnode run

  # Custom files and a faster scroll cycle
  membitnode run --accounts ./accounts.txt --scroll-interval 10m

  # Headless, logs to stdout
  membitnode run --no-dashboard`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runRun(cmd, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&accountsFile, "accounts", "a", "", "accounts file (default: account.txt)")
	runCmd.Flags().StringVarP(&proxiesFile, "proxies", "p", "", "proxy file (default: proxy.txt)")
	runCmd.Flags().StringVar(&apiBaseURL, "api-base-url", "", "rewards API base URL")
	runCmd.Flags().DurationVar(&scrollInterval, "scroll-interval", 0, "time between timeline scrolls")
	runCmd.Flags().BoolVar(&noDashboard, "no-dashboard", false, "run headless without the terminal dashboard")

	// Same flags on the root command so 'membitnode --no-dashboard' works
	// without the run subcommand.
	rootCmd.Flags().StringVarP(&accountsFile, "accounts", "a", "", "accounts file (default: account.txt)")
	rootCmd.Flags().StringVarP(&proxiesFile, "proxies", "p", "", "proxy file (default: proxy.txt)")
	rootCmd.Flags().StringVar(&apiBaseURL, "api-base-url", "", "rewards API base URL")
	rootCmd.Flags().DurationVar(&scrollInterval, "scroll-interval", 0, "time between timeline scrolls")
	rootCmd.Flags().BoolVar(&noDashboard, "no-dashboard", false, "run headless without the terminal dashboard")
}

func runRun(cmd *cobra.Command, args []string) {
	// Build flags map from command line
	flags := make(map[string]interface{})
	if accountsFile != "" {
		flags["accounts"] = accountsFile
	}
	if proxiesFile != "" {
		flags["proxies"] = proxiesFile
	}
	if apiBaseURL != "" {
		flags["api-base-url"] = apiBaseURL
	}
	if scrollInterval > 0 {
		flags["scroll-interval"] = scrollInterval
	}
	if noDashboard {
		flags["no-dashboard"] = true
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	// Initialize logger. With the dashboard up, log lines go to each node's
	// ring instead of stdout.
	if err := logger.Initialize(logger.Options{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		NoConsole: cfg.Dashboard.Enabled,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("Membit Node Runner starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fleet := runner.New(cfg, log)
	if err := fleet.Start(ctx); err != nil {
		// With the dashboard up an empty fleet is recoverable: fix the
		// files and press 'r'. Headless there is nothing to wait for.
		if !cfg.Dashboard.Enabled {
			fmt.Fprintln(os.Stderr, "Failed to start node fleet:", err)
			fmt.Fprintln(os.Stderr, "\nTo store accounts, run:")
			fmt.Fprintln(os.Stderr, "  membitnode auth add")
			fmt.Fprintln(os.Stderr, "  membitnode auth export")
			os.Exit(1)
		}
		log.WithError(err).Error("node fleet failed to start")
	}

	if cfg.Dashboard.Enabled {
		runDashboard(fleet, log)
	} else {
		runHeadless(fleet, log)
	}

	fleet.Stop()
	log.Info("Membit Node Runner stopped")
}

// runDashboard blocks in the TUI until the user quits or a signal arrives.
func runDashboard(fleet *runner.Runner, log logger.Logger) {
	dash := tui.NewDashboard(fleet, fleet)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		dash.Stop()
	}()

	if err := dash.Run(); err != nil {
		log.WithError(err).Error("dashboard failed")
		fmt.Fprintln(os.Stderr, "Dashboard failed:", err)
	}
}

// runHeadless blocks until a signal arrives.
func runHeadless(fleet *runner.Runner, log logger.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	log.InfoWithFields("running headless, ctrl+c to stop", map[string]interface{}{
		"nodes": fleet.NodeCount(),
	})
	<-sigCh
	log.Info("shutdown signal received")
}
