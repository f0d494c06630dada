package sites

// CasasBahia reads casasbahia.com.br product pages. The store rejects
// requests that arrive without a navigation context.
func CasasBahia() Profile {
	return Profile{
		ID:          "casasbahia",
		Name:        "Casas Bahia",
		MainContent: `#product-page, [data-testid="product-page"], main`,
		PriceSelectors: []string{
			`[data-testid="price-value"]`,
			".sales-price",
			`[class*="Price"]`,
			".price",
		},
		Noise:              []string{`[data-testid="carousel"]`, `[class*="Showcase"]`},
		UnavailablePhrases: []string{"Produto indisponível", "Esgotado"},
		UnavailableMarkers: []Marker{{Selector: ".unavailable"}},
		Navigation:         true,
	}
}
