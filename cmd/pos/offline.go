// Offline command toggles the simulate-offline override.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var offlineCmd = &cobra.Command{
	Use:   "offline on|off",
	Short: "Toggle the simulate-offline override",
	Long: `Offline forces the client to behave as if the network were down,
regardless of actual reachability. The override is persisted in the local
store and survives restarts. Turn it off to resume syncing.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var on bool
		switch args[0] {
		case "on":
			on = true
		case "off":
			on = false
		default:
			fmt.Fprintf(os.Stderr, "offline: expected on or off, got %q\n", args[0])
			os.Exit(exitUserError)
		}

		eng, err := newEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, "offline:", err)
			os.Exit(exitSysError)
		}
		defer eng.Close()

		if err := eng.orchestrator.SetSimulateOffline(on); err != nil {
			fmt.Fprintln(os.Stderr, "offline:", err)
			os.Exit(exitSysError)
		}

		if on {
			fmt.Println("Simulate-offline enabled; all sync suppressed")
		} else {
			fmt.Println("Simulate-offline disabled")
		}
		return nil
	},
}
