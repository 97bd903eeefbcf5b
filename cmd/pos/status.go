// Status command shows the sync engine surface.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state, watermark and pending queue size",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, "status:", err)
			os.Exit(exitSysError)
		}
		defer eng.Close()

		status := eng.orchestrator.Status()

		if flagJSON {
			out, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				fmt.Fprintln(os.Stderr, "marshal JSON:", err)
				os.Exit(exitSysError)
			}
			fmt.Println(string(out))
			return nil
		}

		mode := "offline"
		if status.Online {
			mode = "online"
		}
		if status.SimulateOff {
			mode = "offline (simulated)"
		}
		fmt.Printf("State:     %s\n", status.State)
		fmt.Printf("Mode:      %s\n", mode)
		fmt.Printf("Watermark: %d\n", status.Watermark)
		fmt.Printf("Pending:   %d\n", status.PendingCount)
		if status.LastError != "" {
			fmt.Printf("Last error: %s\n", status.LastError)
		}
		return nil
	},
}
