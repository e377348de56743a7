package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "membitnode",
	Short: "Run a fleet of Membit reward nodes from your terminal",
	Long: `Membit Node Runner drives one reward node per stored account: it collects
the home timeline, mirrors avatars to the CDN, submits posts and engagement
counts to the rewards API, and tracks epoch points.

Features:
  - One node per account, each with its own proxy
  - Secure credential storage using the system keychain
  - Live terminal dashboard with per-node logs
  - Automatic retry with exponential backoff on epoch polls

Accounts live in a blank-line-separated key=value file (see 'membitnode auth').`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Running with no subcommand starts the fleet.
		return runCmd.RunE(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .membitnode.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`Membit Node Runner {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
