// Sell command records a checkout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bluecounts/pos/internal/engine"
)

var sellCmd = &cobra.Command{
	Use:   "sell <product-id>[:qty] ...",
	Short: "Record a sale for one or more products",
	Long: `Sell records a checkout against the local store and queues it for
synchronization. Each argument is a product ID with an optional quantity:

  pos sell 0198a3...:2 0198b7...
  pos sell --json 0198a3...

The sale commits locally whether or not the backend is reachable.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := parseCartArgs(args)
		if err != nil {
			fmt.Fprintln(os.Stderr, "sell:", err)
			os.Exit(exitUserError)
		}

		eng, err := newEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, "sell:", err)
			os.Exit(exitSysError)
		}
		defer eng.Close()

		result, err := eng.service.Checkout(context.Background(), lines)
		if err != nil {
			fmt.Fprintln(os.Stderr, "sell:", err)
			os.Exit(exitUserError)
		}
		eng.pushSoon()

		if flagJSON {
			out, _ := json.MarshalIndent(result.Sale, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Printf("Sale %s recorded: %.2f (%d lines, tx %s)\n",
				result.Sale.ID, result.Sale.TotalAmount, len(result.Items), result.Sale.DeviceTransactionID)
		}
		return nil
	},
}

// parseCartArgs turns "id:qty" arguments into cart lines. A bare ID means
// quantity 1.
func parseCartArgs(args []string) ([]engine.CartLine, error) {
	var lines []engine.CartLine
	for _, arg := range args {
		id, rawQty, found := strings.Cut(arg, ":")
		qty := int64(1)
		if found {
			parsed, err := strconv.ParseInt(rawQty, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid quantity in %q", arg)
			}
			qty = parsed
		}
		if id == "" {
			return nil, fmt.Errorf("missing product ID in %q", arg)
		}
		lines = append(lines, engine.CartLine{ProductID: id, Quantity: qty})
	}
	return lines, nil
}
