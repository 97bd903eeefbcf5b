// Serve-mock command runs the in-memory development backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bluecounts/pos/internal/server"
	"github.com/bluecounts/pos/pkg/types"
)

var (
	mockAddr  string
	mockToken string
	mockSeed  bool
)

var serveMockCmd = &cobra.Command{
	Use:   "serve-mock",
	Short: "Run an in-memory sync backend for development",
	Long: `Serve-mock starts an in-memory implementation of the sync backend.
Point api_base at it to exercise the full pull/push cycle locally:

  pos serve-mock --addr :8787 --token dev-token --seed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := zap.NewDevelopment()
		if err != nil {
			logger = zap.NewNop()
		}
		defer logger.Sync()

		srv := server.NewServer(mockToken, logger)
		if mockSeed {
			tenant := cliConfig.TenantID
			outlet := cliConfig.OutletID
			if tenant == "" {
				tenant = "demo-tenant"
			}
			if outlet == "" {
				outlet = "demo-outlet"
			}
			srv.Seed(tenant, outlet, []*types.Product{
				{SKU: "ESP-1", Name: "Espresso", Price: 2.20},
				{SKU: "LAT-1", Name: "Latte", Price: 3.50},
				{SKU: "CRO-1", Name: "Croissant", Price: 2.80},
			}, map[string]int64{"ESP-1": 100, "LAT-1": 80, "CRO-1": 40})
		}

		fmt.Printf("Mock sync backend listening on %s\n", mockAddr)
		if err := srv.Router().Run(mockAddr); err != nil {
			fmt.Fprintln(os.Stderr, "serve-mock:", err)
			os.Exit(exitSysError)
		}
		return nil
	},
}

func init() {
	serveMockCmd.Flags().StringVar(&mockAddr, "addr", ":8787", "listen address")
	serveMockCmd.Flags().StringVar(&mockToken, "token", "dev-token", "bearer token the mock accepts")
	serveMockCmd.Flags().BoolVar(&mockSeed, "seed", false, "seed a small demo catalog")
}
