package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/platform"
	"github.com/lukman83/pricewatch/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check [product-id...]",
	Short: "Run one price check now",
	Long:  "Checks every product in the catalog (or only the given ones), saves the results and sends alerts.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "table", "Output format: json, table")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	products := a.catalog.Products
	if len(args) > 0 {
		products = products[:0:0]
		for _, id := range args {
			p, ok := a.catalog.Product(id)
			if !ok {
				return fmt.Errorf("unknown product %q", id)
			}
			products = append(products, p)
		}
	}

	spin := ui.NewSpinner()
	spin.Start(fmt.Sprintf("Checking %d products...", len(products)))
	runCtx := platform.WithProgress(context.WithoutCancel(ctx), spin.Update)
	res, err := a.monitor.Run(runCtx, products, a.catalog.Sites)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(res)
	default:
		printReadingsTable(res.Readings, targetsOf(products))
		fmt.Fprintf(os.Stdout, "\n%d checked in %s, %d changed, %d alerts\n",
			len(res.Readings), res.Duration().Round(time.Millisecond), len(res.Changed), len(res.Alerts))
	}

	for _, e := range res.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "store error: %v\n", e)
	}
	if !res.OK() {
		return fmt.Errorf("%d results could not be saved", len(res.Errors))
	}
	return nil
}

func targetsOf(products []models.Product) map[string]models.Product {
	out := make(map[string]models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out
}
