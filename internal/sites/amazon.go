package sites

// Amazon reads amazon.com.br product pages.
func Amazon() Profile {
	return Profile{
		ID:          "amazon",
		Name:        "Amazon",
		MainContent: "#dp, #ppd, .dp-container, #centerCol",
		PriceSelectors: []string{
			".a-price-whole",
			"#priceblock_ourprice",
			"#priceblock_dealprice",
			"#corePriceDisplay_desktop_feature_div .a-price-whole",
			`.a-price[data-a-size="xl"] .a-price-whole`,
			`[data-a-color="price"] .a-offscreen`,
		},
		Noise: []string{
			".a-carousel-container",
			"#sims-consolidated-1_feature_div",
			"#sp_detail",
		},
		UnavailablePhrases: []string{"Indisponível", "Fora de estoque"},
		UnavailableMarkers: []Marker{{Selector: "#availability .a-color-price"}},
	}
}
