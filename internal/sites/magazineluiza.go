package sites

// MagazineLuiza reads magazineluiza.com.br product pages.
func MagazineLuiza() Profile {
	return Profile{
		ID:          "magazineluiza",
		Name:        "Magazine Luiza",
		MainContent: `.product-detail, .main-product, [data-testid="product-page"]`,
		PriceSelectors: []string{
			`[data-testid="price-value"]`,
			`[data-testid="price-value-currency-split"]`,
			".price-template__text",
			".sc-price-current",
		},
		Noise:              []string{`[data-testid="recommendation-carousel"]`},
		UnavailablePhrases: []string{"Produto indisponível", "Sem estoque"},
		UnavailableMarkers: []Marker{{Selector: ".unavailable"}},
	}
}
