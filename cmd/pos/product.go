// Product commands for the pos CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluecounts/pos/internal/engine"
)

var (
	productName        string
	productSKU         string
	productDescription string
	productPrice       float64
	productQty         int64
)

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage the product catalog",
}

var productAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a product with an initial stock level",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, "product add:", err)
			os.Exit(exitSysError)
		}
		defer eng.Close()

		product, err := eng.service.AddProduct(context.Background(), engine.AddProductInput{
			Name:            productName,
			SKU:             productSKU,
			Description:     productDescription,
			Price:           productPrice,
			InitialQuantity: productQty,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "product add:", err)
			os.Exit(exitUserError)
		}
		eng.pushSoon()

		if flagJSON {
			out, _ := json.MarshalIndent(product, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Printf("Added product %s (%s): %s\n", product.Name, product.SKU, product.ID)
		}
		return nil
	},
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active products",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "product list:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		products, err := backend.ActiveProducts(backend.Config().TenantID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "product list:", err)
			os.Exit(exitSysError)
		}

		if flagJSON {
			out, _ := json.MarshalIndent(products, "", "  ")
			fmt.Println(string(out))
			return nil
		}
		for _, p := range products {
			fmt.Printf("%s  %-12s  %-30s  %8.2f\n", p.ID, p.SKU, p.Name, p.Price)
		}
		return nil
	},
}

func init() {
	productAddCmd.Flags().StringVar(&productName, "name", "", "product name (required)")
	productAddCmd.Flags().StringVar(&productSKU, "sku", "", "product SKU (required)")
	productAddCmd.Flags().StringVar(&productDescription, "description", "", "product description")
	productAddCmd.Flags().Float64Var(&productPrice, "price", 0, "unit price")
	productAddCmd.Flags().Int64Var(&productQty, "qty", 0, "initial stock quantity")
	productAddCmd.MarkFlagRequired("name")
	productAddCmd.MarkFlagRequired("sku")

	productCmd.AddCommand(productAddCmd)
	productCmd.AddCommand(productListCmd)
}
