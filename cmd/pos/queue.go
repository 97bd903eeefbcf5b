// Queue commands inspect and repair the sync queue.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the outbound mutation queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all queued mutations with their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "queue list:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		items, err := backend.ListQueue()
		if err != nil {
			fmt.Fprintln(os.Stderr, "queue list:", err)
			os.Exit(exitSysError)
		}

		if flagJSON {
			out, _ := json.MarshalIndent(items, "", "  ")
			fmt.Println(string(out))
			return nil
		}
		for _, item := range items {
			at := time.UnixMilli(item.Timestamp).Format("2006-01-02 15:04:05")
			line := fmt.Sprintf("%s  %-14s  %-7s  %s", item.ID, item.ActionType, item.Status, at)
			if item.ErrorMessage != "" {
				line += "  " + item.ErrorMessage
			}
			fmt.Println(line)
		}
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <queue-id>",
	Short: "Re-enqueue a failed mutation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, "queue retry:", err)
			os.Exit(exitSysError)
		}
		defer eng.Close()

		if err := eng.orchestrator.RetryQueueItem(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, "queue retry:", err)
			os.Exit(exitUserError)
		}
		eng.pushSoon()

		fmt.Printf("Queue item %s re-enqueued\n", args[0])
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueRetryCmd)
}
