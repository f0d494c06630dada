package sites

// MercadoLivre reads mercadolivre.com.br listings. Recommendation carousels
// reuse the andes-money-amount markup, so they are dropped first.
func MercadoLivre() Profile {
	return Profile{
		ID:          "mercadolivre",
		Name:        "Mercado Livre",
		MainContent: ".ui-pdp-container, .ui-vip, #root-app",
		PriceSelectors: []string{
			".andes-money-amount__fraction",
			".price-tag-fraction",
			`[class*="andes-money-amount"] [class*="fraction"]`,
			".ui-pdp-price__second-line .andes-money-amount__fraction",
			".price-tag-amount .price-tag-fraction",
		},
		Noise: []string{
			".ui-recommendations-carousel-snapped",
			".ui-recommendations-carousel-free",
			`[class*="ui-pdp-carousel"]`,
		},
		UnavailablePhrases: []string{
			"Este produto está indisponível no momento",
			"Sem estoque",
			"Produto pausado",
			"Não disponível",
		},
		UnavailableMarkers: []Marker{{Selector: ".item-conditions", Text: "Pausado"}},
	}
}
