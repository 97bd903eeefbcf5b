// Session commands manage register sessions.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluecounts/pos/pkg/types"
)

var (
	sessionFloat   float64
	sessionCounted float64
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Open and close register sessions",
}

var sessionOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a register session with a counted opening float",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, "session open:", err)
			os.Exit(exitSysError)
		}
		defer eng.Close()

		session, err := eng.service.OpenSession(context.Background(), sessionFloat)
		if err != nil {
			fmt.Fprintln(os.Stderr, "session open:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			out, _ := json.MarshalIndent(session, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Printf("Session %s opened with float %.2f\n", session.ID, session.OpeningBalance)
		}
		return nil
	},
}

var sessionCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the open register session with the counted balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, "session close:", err)
			os.Exit(exitSysError)
		}
		defer eng.Close()

		open, err := eng.store.OpenSessionForOutlet(eng.store.Config().OutletID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				fmt.Fprintln(os.Stderr, "session close: no open session for this outlet")
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "session close:", err)
			os.Exit(exitSysError)
		}

		result, err := eng.service.CloseSession(context.Background(), open.ID, sessionCounted)
		if err != nil {
			fmt.Fprintln(os.Stderr, "session close:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Printf("Session %s closed\n", open.ID)
			fmt.Printf("Expected: %.2f  Counted: %.2f  Variance: %+.2f\n",
				result.ExpectedBalance, sessionCounted, result.Variance)
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the open session at this outlet",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "session show:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		open, err := backend.OpenSessionForOutlet(backend.Config().OutletID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				fmt.Println("No open session")
				return nil
			}
			fmt.Fprintln(os.Stderr, "session show:", err)
			os.Exit(exitSysError)
		}

		if flagJSON {
			out, _ := json.MarshalIndent(open, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Printf("Session %s open since %s (float %.2f)\n",
				open.ID, open.OpenedAt.Format("2006-01-02 15:04:05"), open.OpeningBalance)
		}
		return nil
	},
}

func init() {
	sessionOpenCmd.Flags().Float64Var(&sessionFloat, "float", 0, "counted opening balance (required)")
	sessionOpenCmd.MarkFlagRequired("float")
	sessionCloseCmd.Flags().Float64Var(&sessionCounted, "counted", 0, "counted closing balance (required)")
	sessionCloseCmd.MarkFlagRequired("counted")

	sessionCmd.AddCommand(sessionOpenCmd)
	sessionCmd.AddCommand(sessionCloseCmd)
	sessionCmd.AddCommand(sessionShowCmd)
}
