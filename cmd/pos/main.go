// Package main provides the pos CLI, the offline-first point-of-sale
// client. Every command operates against the local SQLite store first;
// the sync commands move data between the store and the backend.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
}
