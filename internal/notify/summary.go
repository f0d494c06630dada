package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/price"
)

// nearTargetPercent is how far above target still counts as "near".
var nearTargetPercent = decimal.NewFromInt(10)

// SummaryStats counts products by how their best available price compares
// with the target.
type SummaryStats struct {
	Products      int
	OnTarget      int
	NearTarget    int
	AboveTarget   int
	Unavailable   int
	BlockedStores []string
}

// Summary is a rendered cycle digest.
type Summary struct {
	Title    string
	Priority string
	Tags     string
	Body     string
	Stats    SummaryStats
}

// BuildSummary groups readings by product in catalog order and renders the
// digest sent after a cycle.
func BuildSummary(readings []models.Reading, products []models.Product, now time.Time) Summary {
	byProduct := make(map[string][]models.Reading)
	for _, r := range readings {
		byProduct[r.ProductID] = append(byProduct[r.ProductID], r)
	}

	var (
		stats   SummaryStats
		details []string
		blocked = make(map[string]bool)
	)
	for _, p := range products {
		rs, ok := byProduct[p.ID]
		if !ok {
			continue
		}
		stats.Products++
		for _, r := range rs {
			if r.Error != "" && r.Failure != models.FailureExtraction {
				blocked[siteLabel(r)] = true
			}
		}

		best, ok := bestAvailable(rs)
		if !ok {
			stats.Unavailable++
			details = append(details, fmt.Sprintf("[x] %s\n   Nenhuma loja disponível\n", p.Name))
			continue
		}

		bestPrice := decimal.NewFromFloat(*best.Price)
		diff := bestPrice.Sub(p.TargetPrice)
		switch {
		case diff.LessThanOrEqual(decimal.Zero):
			stats.OnTarget++
			details = append(details, fmt.Sprintf("[alvo] %s\n   %s (%s) NO ALVO!\n   Economia: %s\n",
				p.Name, price.FormatBRL(bestPrice), siteLabel(best), price.FormatBRL(diff.Abs())))
		case percentOf(diff, p.TargetPrice).LessThanOrEqual(nearTargetPercent):
			stats.NearTarget++
			details = append(details, fmt.Sprintf("[perto] %s\n   %s (%s)\n   Meta: %s (+%s%%)\n",
				p.Name, price.FormatBRL(bestPrice), siteLabel(best), price.FormatBRL(p.TargetPrice),
				percentOf(diff, p.TargetPrice).StringFixed(1)))
		default:
			stats.AboveTarget++
			details = append(details, fmt.Sprintf("[acima] %s\n   %s (%s)\n   Meta: %s (+%s%%)\n",
				p.Name, price.FormatBRL(bestPrice), siteLabel(best), price.FormatBRL(p.TargetPrice),
				percentOf(diff, p.TargetPrice).StringFixed(0)))
		}
	}

	for s := range blocked {
		stats.BlockedStores = append(stats.BlockedStores, s)
	}
	sort.Strings(stats.BlockedStores)

	var b strings.Builder
	fmt.Fprintf(&b, "RESUMO - %s\n\n", now.Format("15:04"))
	fmt.Fprintf(&b, "%d produtos monitorados\n", stats.Products)
	if stats.OnTarget > 0 {
		fmt.Fprintf(&b, "%d no alvo!\n", stats.OnTarget)
	}
	if stats.NearTarget > 0 {
		fmt.Fprintf(&b, "%d %s\n", stats.NearTarget, plural(stats.NearTarget, "próximo", "próximos"))
	}
	if stats.AboveTarget > 0 {
		fmt.Fprintf(&b, "%d acima\n", stats.AboveTarget)
	}
	if stats.Unavailable > 0 {
		fmt.Fprintf(&b, "%d %s\n", stats.Unavailable, plural(stats.Unavailable, "indisponível", "indisponíveis"))
	}
	b.WriteString("\n")
	b.WriteString(strings.Join(details, "\n"))
	if len(stats.BlockedStores) > 0 {
		fmt.Fprintf(&b, "\nLojas bloqueadas: %s\n", strings.Join(stats.BlockedStores, ", "))
	}

	s := Summary{
		Title:    "Resumo de Preços",
		Priority: "default",
		Tags:     "chart_with_upwards_trend",
		Body:     b.String(),
		Stats:    stats,
	}
	if stats.OnTarget > 0 {
		s.Title = "Alvo Atingido!"
		s.Priority = "high"
		s.Tags = "moneybag,tada"
	}
	return s
}

func bestAvailable(rs []models.Reading) (models.Reading, bool) {
	var (
		best  models.Reading
		found bool
	)
	for _, r := range rs {
		if !r.HasPrice() || !r.Available {
			continue
		}
		if !found || *r.Price < *best.Price {
			best, found = r, true
		}
	}
	return best, found
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100))
}

// Savings returns how far below target a price is, and that amount as a
// percentage of the target.
func Savings(p float64, target decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	s := target.Sub(decimal.NewFromFloat(p))
	return s, percentOf(s, target)
}

func siteLabel(r models.Reading) string {
	if r.SiteName != "" {
		return r.SiteName
	}
	return r.SiteID
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
