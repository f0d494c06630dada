// Package api exposes the monitor's read model and manual trigger over
// HTTP. The same Service backs the MCP tools.
package api

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/monitor"
	"github.com/lukman83/pricewatch/internal/store"
)

// DefaultHistoryWindow is how far back the price snapshot reaches.
const DefaultHistoryWindow = 30 * 24 * time.Hour

// Cycler runs cycles over a fixed catalog. *monitor.Monitor implements it.
type Cycler interface {
	RunCycle(ctx context.Context) (*monitor.CycleResult, error)
	Running() bool
	Products() []models.Product
	Sites() []models.Site
}

// PriceView is a current price enriched with catalog data.
type PriceView struct {
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	SiteID      string    `json:"store"`
	SiteName    string    `json:"storeName"`
	Price       *float64  `json:"price"`
	TargetPrice float64   `json:"targetPrice"`
	URL         string    `json:"url"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error,omitempty"`
	Available   bool      `json:"available"`
}

// Point is one history entry as served to clients.
type Point struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Snapshot is the dashboard view: current prices plus recent history keyed
// by "<product>-<store>".
type Snapshot struct {
	LastCheck *time.Time         `json:"lastCheck"`
	NextCheck *time.Time         `json:"nextCheck"`
	Prices    []PriceView        `json:"prices"`
	History   map[string][]Point `json:"history"`
	Timestamp time.Time          `json:"timestamp"`
}

// Service builds read views from the store and runs manual cycles.
type Service struct {
	Store   store.Store
	Monitor Cycler
	// Interval is the scheduler period, used to estimate the next check
	// when Next is nil or returns the zero time.
	Interval time.Duration
	Next     func() time.Time
	Window   time.Duration

	now func() time.Time
}

func NewService(st store.Store, m Cycler, interval time.Duration) *Service {
	return &Service{Store: st, Monitor: m, Interval: interval, Window: DefaultHistoryWindow, now: time.Now}
}

// Snapshot returns the current prices, last and next check times and the
// history of the last Window.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	now := s.now()
	snap := &Snapshot{Timestamp: now, Prices: []PriceView{}, History: map[string][]Point{}}

	last, ok, err := s.Store.LastCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("read last check: %w", err)
	}
	if ok {
		snap.LastCheck = &last
	}
	snap.NextCheck = s.nextCheck(last, ok)

	current, err := s.Store.ListCurrentPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("read current prices: %w", err)
	}
	snap.Prices = s.enrich(current)

	window := s.Window
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	entries, err := s.Store.ListHistory(ctx, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	snap.History = group(entries, "", "")
	return snap, nil
}

// History returns every stored entry, optionally restricted to one product
// and/or store.
func (s *Service) History(ctx context.Context, productID, siteID string) (map[string][]Point, error) {
	entries, err := s.Store.ListHistory(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return group(entries, productID, siteID), nil
}

// Scrape runs a cycle now. It returns monitor.ErrCycleInProgress when one
// is already running.
func (s *Service) Scrape(ctx context.Context) (*monitor.CycleResult, error) {
	return s.Monitor.RunCycle(ctx)
}

func (s *Service) nextCheck(last time.Time, haveLast bool) *time.Time {
	if s.Next != nil {
		if next := s.Next(); !next.IsZero() {
			return &next
		}
	}
	if !haveLast || s.Interval <= 0 {
		return nil
	}
	next := last.Add(s.Interval)
	return &next
}

func (s *Service) enrich(current []models.CurrentPrice) []PriceView {
	products := make(map[string]models.Product)
	sites := make(map[string]models.Site)
	if s.Monitor != nil {
		for _, p := range s.Monitor.Products() {
			products[p.ID] = p
		}
		for _, st := range s.Monitor.Sites() {
			sites[st.ID] = st
		}
	}

	views := make([]PriceView, 0, len(current))
	for _, c := range current {
		v := PriceView{
			ProductID:   c.ProductID,
			ProductName: c.ProductID,
			SiteID:      c.SiteID,
			SiteName:    c.SiteID,
			Price:       c.Price,
			Timestamp:   c.CheckedAt,
			Error:       c.Error,
			Available:   c.Available,
		}
		if p, ok := products[c.ProductID]; ok {
			v.ProductName = p.Name
			v.URL = p.URLs[c.SiteID]
			v.TargetPrice = p.TargetPrice.InexactFloat64()
		}
		if st, ok := sites[c.SiteID]; ok && st.Name != "" {
			v.SiteName = st.Name
		}
		views = append(views, v)
	}
	// Most recently checked first.
	sort.SliceStable(views, func(i, j int) bool { return views[i].Timestamp.After(views[j].Timestamp) })
	return views
}

// group keys entries by pair, oldest first within each pair.
func group(entries []models.HistoryEntry, productID, siteID string) map[string][]Point {
	out := make(map[string][]Point)
	for _, e := range entries {
		if productID != "" && e.ProductID != productID {
			continue
		}
		if siteID != "" && e.SiteID != siteID {
			continue
		}
		key := models.PairKey(e.ProductID, e.SiteID)
		out[key] = append(out[key], Point{Date: e.CheckedAt, Price: e.Price})
	}
	for _, pts := range out {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
	}
	return out
}
