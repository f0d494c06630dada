package sites

import "regexp"

var brlAmount = regexp.MustCompile(`R\$\s*[\d.,]+`)

// Terabyte reads terabyteshop.com.br pages. Its markup changes often, so a
// scan of the page text for "R$" amounts backs up the selectors; amounts of
// R$ 100 or less are shipping and installment values, not the product.
func Terabyte() Profile {
	return Profile{
		ID:          "terabyte",
		Name:        "Terabyte Shop",
		MainContent: "#prod, .prod-detail, main",
		PriceSelectors: []string{
			".prod-new-price strong",
			".prod-new-price",
			".product-price strong",
			".product-price",
			".price strong",
			".price",
			`[itemprop="price"]`,
			".valor-por strong",
			".valor-por",
			"#valVista strong",
			"#valVista",
		},
		UnavailablePhrases: []string{
			"produto indisponível",
			"sem estoque",
			"não disponível",
			"esgotado",
			"fora de estoque",
		},
		UnavailableMarkers: []Marker{
			{Selector: ".unavailable"},
			{Selector: ".out-of-stock"},
			{Selector: ".indisponivel"},
		},
		FoldCase:      true,
		TextFallback:  brlAmount,
		FallbackFloor: 100,
		Navigation:    true,
	}
}
