package platform

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lukman83/pricewatch/internal/models"
)

// UnknownSiteError reports a site id with no registered strategy.
type UnknownSiteError struct {
	SiteID string
}

func (e *UnknownSiteError) Error() string {
	return fmt.Sprintf("site %q has no registered strategy", e.SiteID)
}

// Registry maps site ids to strategies.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

func (r *Registry) Register(siteID string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[siteID] = s
}

func (r *Registry) Get(siteID string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[siteID]
	if !ok {
		return nil, &UnknownSiteError{SiteID: siteID}
	}
	return s, nil
}

// Names returns the registered site ids, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every enabled site and every site referenced by a
// product URL has a strategy. It is meant to run once at startup.
func (r *Registry) Validate(products []models.Product, sites []models.Site) error {
	var errs []error
	seen := make(map[string]bool)
	check := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		if _, err := r.Get(id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range sites {
		if s.Enabled {
			check(s.ID)
		}
	}
	for _, p := range products {
		ids := make([]string, 0, len(p.URLs))
		for id := range p.URLs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			check(id)
		}
	}
	return errors.Join(errs...)
}
