package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"membitnode/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Membit Node Runner configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (MEMBITNODE_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with defaults",
	Long: `Create a configuration file populated with the default values.

The file is created as '.membitnode.yaml' in the current directory unless
a different path is given with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging all sources:
  - Command line flags
  - Environment variables (MEMBITNODE_*)
  - Configuration file
  - Default values`,
	Run: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".membitnode.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintln(os.Stderr, "Configuration file already exists:", configPath)
		os.Exit(1)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create configuration file:", err)
		os.Exit(1)
	}

	fmt.Println("Configuration file created:", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the file to point at your account and proxy files")
	fmt.Println("2. Run 'membitnode config show' to check the result")
	fmt.Println("3. Start the fleet with 'membitnode run'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to format configuration:", err)
		os.Exit(1)
	}

	fmt.Println("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (MEMBITNODE_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (auto-detected)")
	}
	fmt.Println("4. Default values")
}
