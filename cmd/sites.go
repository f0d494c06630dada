package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lukman83/pricewatch/config"
	"github.com/lukman83/pricewatch/internal/sites"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List supported stores and validate the catalog against them",
	RunE:  runSites,
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}

func runSites(cmd *cobra.Command, args []string) error {
	reg, err := buildRegistry()
	if err != nil {
		return err
	}

	catalog, catErr := config.LoadCatalog(cfg.CatalogPath, sites.Catalog())
	counts := map[string]int{}
	enabled := map[string]bool{}
	if catErr == nil {
		for _, p := range catalog.Products {
			for id := range p.URLs {
				counts[id]++
			}
		}
		for _, s := range catalog.Sites {
			enabled[s.ID] = s.Enabled
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENABLED\tPRODUCTS")
	for _, p := range sites.Profiles() {
		state := "-"
		if catErr == nil {
			state = fmt.Sprint(enabled[p.ID])
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", p.ID, p.Name, state, counts[p.ID])
	}
	w.Flush()

	if catErr != nil {
		return catErr
	}
	if err := reg.Validate(catalog.Products, catalog.Sites); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n%s: %d products, %d stores OK\n", cfg.CatalogPath, len(catalog.Products), len(catalog.Sites))
	return nil
}
