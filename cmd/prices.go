package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Show the last known prices from the store",
	RunE:  runPrices,
}

var historyCmd = &cobra.Command{
	Use:   "history [product-id] [store]",
	Short: "Show the recorded price history",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runHistory,
}

func init() {
	pricesCmd.Flags().String("format", "table", "Output format: json, table")
	historyCmd.Flags().String("format", "table", "Output format: json, table")
	rootCmd.AddCommand(pricesCmd, historyCmd)
}

func runPrices(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.service.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	printPriceViews(snap.Prices)
	if snap.LastCheck != nil {
		fmt.Fprintf(os.Stdout, "\nLast check: %s\n", snap.LastCheck.Local().Format("02/01/2006 15:04"))
	} else {
		fmt.Fprintln(os.Stdout, "\nNo check has run yet.")
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	var productID, siteID string
	if len(args) > 0 {
		productID = args[0]
	}
	if len(args) > 1 {
		siteID = args[1]
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	history, err := a.service.History(cmd.Context(), productID, siteID)
	if err != nil {
		return err
	}
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	keys := make([]string, 0, len(history))
	for k := range history {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			fmt.Fprintln(os.Stdout)
		}
		printHistory(k, history[k])
	}
	if len(keys) == 0 {
		fmt.Fprintln(os.Stdout, "No history recorded.")
	}
	return nil
}
