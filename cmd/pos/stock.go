// Stock commands for the pos CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var stockChange int64

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "Manage inventory at this outlet",
}

var stockAdjustCmd = &cobra.Command{
	Use:   "adjust <product-id>",
	Short: "Apply a relative stock change for a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, "stock adjust:", err)
			os.Exit(exitSysError)
		}
		defer eng.Close()

		if err := eng.service.AdjustStock(context.Background(), args[0], stockChange); err != nil {
			fmt.Fprintln(os.Stderr, "stock adjust:", err)
			os.Exit(exitUserError)
		}
		eng.pushSoon()

		fmt.Printf("Adjusted stock for %s by %+d\n", args[0], stockChange)
		return nil
	},
}

var stockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List on-hand quantities at this outlet",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "stock list:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		cfg := backend.Config()
		rows, err := backend.ActiveInventory(cfg.TenantID, cfg.OutletID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stock list:", err)
			os.Exit(exitSysError)
		}

		if flagJSON {
			out, _ := json.MarshalIndent(rows, "", "  ")
			fmt.Println(string(out))
			return nil
		}
		for _, inv := range rows {
			fmt.Printf("%s  product=%s  qty=%d\n", inv.ID, inv.ProductID, inv.Quantity)
		}
		return nil
	},
}

func init() {
	stockAdjustCmd.Flags().Int64Var(&stockChange, "change", 0, "signed quantity change (required)")
	stockAdjustCmd.MarkFlagRequired("change")

	stockCmd.AddCommand(stockAdjustCmd)
	stockCmd.AddCommand(stockListCmd)
}
