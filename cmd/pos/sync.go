// Sync command runs one pull-push-pull cycle against the backend.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluecounts/pos/internal/engine"
)

var syncFull bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle: pull, push pending mutations, pull again",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, "sync:", err)
			os.Exit(exitSysError)
		}
		defer eng.Close()

		if err := eng.orchestrator.SyncCycle(context.Background(), syncFull); err != nil {
			if err == engine.ErrOffline {
				fmt.Fprintln(os.Stderr, "sync: device is offline (check api_base, token and the offline override)")
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "sync:", err)
			os.Exit(exitSysError)
		}

		status := eng.orchestrator.Status()
		fmt.Printf("Sync complete (watermark %d, %d pending)\n", status.Watermark, status.PendingCount)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "ignore the watermark and pull the full tenant dataset")
}
