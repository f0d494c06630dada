package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lukman83/pricewatch/internal/platform"
	"github.com/lukman83/pricewatch/internal/price"
	"github.com/lukman83/pricewatch/internal/ui"
)

var debugCmd = &cobra.Command{
	Use:   "debug [store] [url]",
	Short: "Scrape a single product page and show what was extracted",
	Long:  "Fetches one page with the store's strategy without touching the catalog, the store or the notifiers.",
	Args:  cobra.ExactArgs(2),
	RunE:  runDebug,
}

func init() {
	debugCmd.Flags().String("format", "table", "Output format: json, table")
	rootCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) error {
	siteID, url := args[0], args[1]
	format, _ := cmd.Flags().GetString("format")

	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	strategy, err := reg.Get(siteID)
	if err != nil {
		return fmt.Errorf("%w (supported: %v)", err, reg.Names())
	}

	spin := ui.NewSpinner()
	spin.Start(fmt.Sprintf("Fetching %s...", cleanURL(url)))
	ctx := platform.WithProgress(context.Background(), spin.Update)
	res := strategy.Scrape(ctx, url)
	spin.Stop()

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(os.Stdout, "Store:     %s\n", siteID)
	fmt.Fprintf(os.Stdout, "URL:       %s\n", url)
	if res.Price == nil {
		fmt.Fprintf(os.Stdout, "Price:     -\n")
		fmt.Fprintf(os.Stdout, "Failure:   %s\n", res.Failure)
		fmt.Fprintf(os.Stdout, "Error:     %s\n", res.Error)
		return nil
	}
	fmt.Fprintf(os.Stdout, "Price:     %s\n", price.FormatFloatBRL(*res.Price))
	fmt.Fprintf(os.Stdout, "Available: %v\n", res.Available)
	fmt.Fprintf(os.Stdout, "Selector:  %s\n", res.Selector)
	return nil
}
