package sites

import (
	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/platform"
)

// Profiles returns every supported store.
func Profiles() []Profile {
	return []Profile{
		Amazon(),
		CasasBahia(),
		MagazineLuiza(),
		MercadoLivre(),
		Terabyte(),
	}
}

// RegisterAll registers a strategy for every supported store.
func RegisterAll(reg *platform.Registry, f Fetcher) {
	for _, p := range Profiles() {
		reg.Register(p.ID, New(p, f))
	}
}

// Catalog returns the supported stores as enabled sites, for catalogs that
// do not declare their own.
func Catalog() []models.Site {
	out := make([]models.Site, 0, 5)
	for _, p := range Profiles() {
		out = append(out, models.Site{ID: p.ID, Name: p.Name, Enabled: true})
	}
	return out
}
