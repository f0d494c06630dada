package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/lukman83/pricewatch/internal/models"
)

// Catalog is the set of tracked products and the stores they are checked on.
type Catalog struct {
	Products []models.Product
	Sites    []models.Site
}

type rawCatalog struct {
	Products []rawProduct `yaml:"products"`
	Sites    []rawSite    `yaml:"sites"`
	Stores   []rawSite    `yaml:"stores"`
}

type rawProduct struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Prices are kept as nodes so they parse straight into decimals.
	TargetPrice      yaml.Node         `yaml:"target_price"`
	TargetPriceCamel yaml.Node         `yaml:"targetPrice"`
	URLs             map[string]string `yaml:"urls"`
}

type rawSite struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`
}

// LoadCatalog reads a YAML or JSON catalog file. When the file declares no
// sites, known is used. The result is validated before it is returned.
func LoadCatalog(path string, known []models.Site) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := ParseCatalog(data, known)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte, known []models.Site) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	cat := &Catalog{}
	sites := raw.Sites
	if len(sites) == 0 {
		sites = raw.Stores
	}
	if len(sites) == 0 {
		cat.Sites = append(cat.Sites, known...)
	}
	for _, s := range sites {
		site := models.Site{ID: strings.TrimSpace(s.ID), Name: s.Name, Enabled: s.Enabled == nil || *s.Enabled}
		if site.Name == "" {
			site.Name = nameOf(known, site.ID)
		}
		cat.Sites = append(cat.Sites, site)
	}

	var errs []error
	for i, p := range raw.Products {
		product := models.Product{ID: strings.TrimSpace(p.ID), Name: p.Name, URLs: p.URLs}
		node := p.TargetPrice
		if node.Kind == 0 {
			node = p.TargetPriceCamel
		}
		if node.Kind == 0 {
			errs = append(errs, fmt.Errorf("product %d (%s): missing target price", i, product.ID))
			continue
		}
		target, err := decimal.NewFromString(node.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("product %d (%s): target price %q: %w", i, product.ID, node.Value, err))
			continue
		}
		product.TargetPrice = target.Round(2)
		cat.Products = append(cat.Products, product)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// Validate checks ids, names, target prices and product URLs.
func (c *Catalog) Validate() error {
	var errs []error

	siteIDs := make(map[string]bool, len(c.Sites))
	for _, s := range c.Sites {
		switch {
		case s.ID == "":
			errs = append(errs, errors.New("site with empty id"))
		case siteIDs[s.ID]:
			errs = append(errs, fmt.Errorf("duplicate site %q", s.ID))
		}
		siteIDs[s.ID] = true
	}

	if len(c.Products) == 0 {
		errs = append(errs, errors.New("no products"))
	}
	productIDs := make(map[string]bool, len(c.Products))
	for _, p := range c.Products {
		switch {
		case p.ID == "":
			errs = append(errs, fmt.Errorf("product %q has an empty id", p.Name))
			continue
		case productIDs[p.ID]:
			errs = append(errs, fmt.Errorf("duplicate product %q", p.ID))
		}
		productIDs[p.ID] = true

		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("product %q: empty name", p.ID))
		}
		if !p.TargetPrice.IsPositive() {
			errs = append(errs, fmt.Errorf("product %q: target price must be positive", p.ID))
		}
		if len(p.URLs) == 0 {
			errs = append(errs, fmt.Errorf("product %q: no store URLs", p.ID))
		}
		for site, raw := range p.URLs {
			if !siteIDs[site] {
				errs = append(errs, fmt.Errorf("product %q: unknown store %q", p.ID, site))
			}
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, fmt.Errorf("product %q: invalid %s URL %q", p.ID, site, raw))
			}
		}
	}
	return errors.Join(errs...)
}

// Product returns the product with the given id.
func (c *Catalog) Product(id string) (models.Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// Site returns the site with the given id.
func (c *Catalog) Site(id string) (models.Site, bool) {
	for _, s := range c.Sites {
		if s.ID == id {
			return s, true
		}
	}
	return models.Site{}, false
}

func nameOf(sites []models.Site, id string) string {
	for _, s := range sites {
		if s.ID == id {
			return s.Name
		}
	}
	return id
}
