package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lukman83/pricewatch/internal/api"
	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/notify"
	"github.com/lukman83/pricewatch/internal/price"
)

// printReadingsTable prints cycle readings in a card layout, grouped by
// product in catalog order.
func printReadingsTable(readings []models.Reading, products map[string]models.Product) {
	last := ""
	n := 0
	for _, r := range readings {
		if r.ProductID != last {
			if last != "" {
				fmt.Fprintln(os.Stdout)
			}
			last = r.ProductID
			n++
			p := products[r.ProductID]
			fmt.Fprintf(os.Stdout, " %d. %s  (target %s)\n", n, truncate(r.ProductName, 60), price.FormatBRL(p.TargetPrice))
		}
		fmt.Fprintf(os.Stdout, "    %-16s %s\n", r.SiteName, readingLine(r, products[r.ProductID].TargetPrice))
	}
}

func readingLine(r models.Reading, target decimal.Decimal) string {
	if !r.HasPrice() {
		return "-  " + truncate(plainText(r.Error), 70)
	}
	line := price.FormatFloatBRL(*r.Price)
	if !r.Available {
		line += "  [unavailable]"
	} else if notify.Eligible(r, target) {
		amount, pct := notify.Savings(*r.Price, target)
		line += fmt.Sprintf("  [on target, -%s / %s%%]", price.FormatBRL(amount), pct.StringFixed(1))
	}
	if r.Changed {
		line += "  *"
	}
	return line
}

// printPriceViews prints stored prices one per line.
func printPriceViews(views []api.PriceView) {
	for _, v := range views {
		value := "-"
		if v.Price != nil {
			value = price.FormatFloatBRL(*v.Price)
		}
		status := ""
		switch {
		case v.Error != "":
			status = "  " + truncate(plainText(v.Error), 50)
		case !v.Available:
			status = "  [unavailable]"
		}
		fmt.Fprintf(os.Stdout, " %-40s %-16s %14s%s\n", truncate(v.ProductName, 40), v.SiteName, value, status)
		if v.URL != "" {
			fmt.Fprintf(os.Stdout, "    %s\n", cleanURL(v.URL))
		}
	}
}

func printHistory(key string, points []api.Point) {
	fmt.Fprintf(os.Stdout, " %s\n", key)
	for _, p := range points {
		fmt.Fprintf(os.Stdout, "    %s  %s\n", p.Date.Local().Format("02/01/2006 15:04"), price.FormatFloatBRL(p.Price))
	}
}

// cleanURL strips tracking query params (ref, pf_rd_*, etc.)
// and returns just the product page URL.
func cleanURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// plainText collapses an error message to one line for table output.
func plainText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
