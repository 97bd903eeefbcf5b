// Root command for the pos CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/bluecounts/pos/internal/paths"
)

const appVersion = "0.1.0"

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool
	flagVerbose   bool
)

// cliConfig holds the configuration loaded from config.yaml.
// Set by PersistentPreRunE so all subcommands can use it.
var cliConfig fileConfig

var rootCmd = &cobra.Command{
	Use:     "pos",
	Short:   "Bluecounts POS is an offline-first point-of-sale client",
	Version: appVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		cliConfig = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.bluecounts-db)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(productCmd)
	rootCmd.AddCommand(stockCmd)
	rootCmd.AddCommand(sellCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(offlineCmd)
	rootCmd.AddCommand(serveMockCmd)
}

// resolveDataDir returns the data directory path following the precedence:
// --data-dir flag > config.yaml data_dir > BLUECOUNTS_DATA_DIR env > default.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, cliConfig.DataDir)
}

// resolveConfigDir returns the configuration directory following the
// precedence: --config-dir flag > BLUECOUNTS_CONFIG_DIR env > platform default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
