// Init command for the pos CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gopkg.in/yaml.v3"
)

var (
	initAPIBase  string
	initTenantID string
	initOutletID string
	initDeviceID string
	initUserID   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the device configuration and create the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if initTenantID == "" || initOutletID == "" || initDeviceID == "" {
			fmt.Fprintln(os.Stderr, "init: --tenant, --outlet and --device are required")
			os.Exit(exitUserError)
		}

		configDir, err := resolveConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}

		cliConfig.APIBase = initAPIBase
		cliConfig.TenantID = initTenantID
		cliConfig.OutletID = initOutletID
		cliConfig.DeviceID = initDeviceID
		cliConfig.UserID = initUserID

		content, err := yaml.Marshal(map[string]string{
			cfgKeyAPIBase:  initAPIBase,
			cfgKeyTenantID: initTenantID,
			cfgKeyOutletID: initOutletID,
			cfgKeyDeviceID: initDeviceID,
			cfgKeyUserID:   initUserID,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		path := filepath.Join(configDir, configFileExt)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "init: write config:", err)
			os.Exit(exitSysError)
		}

		// Attaching once creates the database and applies the schema.
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		fmt.Printf("Initialized POS client for outlet %s (config: %s)\n", initOutletID, path)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initAPIBase, "api-base", "", "sync backend base URL")
	initCmd.Flags().StringVar(&initTenantID, "tenant", "", "tenant identifier (required)")
	initCmd.Flags().StringVar(&initOutletID, "outlet", "", "outlet identifier (required)")
	initCmd.Flags().StringVar(&initDeviceID, "device", "", "device identifier (required)")
	initCmd.Flags().StringVar(&initUserID, "user", "", "operator identifier")
}
