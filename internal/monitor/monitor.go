// Package monitor runs scrape cycles: it fans out one task per (product,
// store) pair, waits for all of them, then persists readings, records
// significant moves and dispatches alerts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lukman83/pricewatch/internal/history"
	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/notify"
	"github.com/lukman83/pricewatch/internal/observability"
	"github.com/lukman83/pricewatch/internal/platform"
	"github.com/lukman83/pricewatch/internal/price"
	"github.com/lukman83/pricewatch/internal/store"
)

// ErrCycleInProgress is returned when a cycle is requested while another
// one is still running. Requests are rejected, never queued.
var ErrCycleInProgress = errors.New("a price check is already running")

// DefaultNotifyTimeout bounds each alert and summary delivery.
const DefaultNotifyTimeout = 30 * time.Second

// PersistenceError is a store failure for one pair. The cycle continues.
type PersistenceError struct {
	Op        string
	ProductID string
	SiteID    string
	Err       error
}

func (e *PersistenceError) Error() string {
	if e.ProductID == "" {
		return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persist %s for %s: %v", e.Op, models.PairKey(e.ProductID, e.SiteID), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CycleResult is the outcome of one cycle. Readings holds one entry per
// pair, in catalog order.
type CycleResult struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Readings   []models.Reading `json:"readings"`
	Changed    []models.Reading `json:"changed"`
	Alerts     []models.Reading `json:"alerts"`
	Errors     []error          `json:"-"`
}

// OK reports whether every store operation succeeded.
func (r *CycleResult) OK() bool { return len(r.Errors) == 0 }

func (r *CycleResult) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Config wires a Monitor. Registry and Store are required.
type Config struct {
	Registry *platform.Registry
	Store    store.Store
	Notifier notify.Notifier
	Detector *history.Detector
	Metrics  *observability.Metrics

	Products []models.Product
	Sites    []models.Site

	// Concurrency caps simultaneous scrapes; zero means one task per pair.
	Concurrency int
	// NotifyTimeout bounds each notifier call; zero means DefaultNotifyTimeout.
	NotifyTimeout time.Duration
}

// Monitor is safe for concurrent use; overlapping cycles are rejected.
type Monitor struct {
	registry    *platform.Registry
	store       store.Store
	notifier    notify.Notifier
	detector    *history.Detector
	metrics     *observability.Metrics
	products    []models.Product
	sites       []models.Site
	concurrency int
	notifyWait  time.Duration

	now     func() time.Time
	running atomic.Bool
	last    atomic.Pointer[CycleResult]
}

func New(cfg Config) *Monitor {
	m := &Monitor{
		registry:    cfg.Registry,
		store:       cfg.Store,
		notifier:    cfg.Notifier,
		detector:    cfg.Detector,
		metrics:     cfg.Metrics,
		products:    cfg.Products,
		sites:       cfg.Sites,
		concurrency: cfg.Concurrency,
		notifyWait:  cfg.NotifyTimeout,
		now:         time.Now,
	}
	if m.notifyWait <= 0 {
		m.notifyWait = DefaultNotifyTimeout
	}
	if m.notifier == nil {
		m.notifier = notify.Nop{}
	}
	if m.detector == nil {
		m.detector = history.NewDetector(history.DefaultThreshold)
	}
	return m
}

func (m *Monitor) Products() []models.Product { return m.products }

func (m *Monitor) Sites() []models.Site { return m.sites }

// Running reports whether a cycle is in progress.
func (m *Monitor) Running() bool { return m.running.Load() }

// LastResult returns the most recent completed cycle, or nil.
func (m *Monitor) LastResult() *CycleResult { return m.last.Load() }

// RunCycle checks the configured catalog.
func (m *Monitor) RunCycle(ctx context.Context) (*CycleResult, error) {
	return m.Run(ctx, m.products, m.sites)
}

// Run checks every product on every enabled site that has a URL for it.
// It returns an error only when another cycle is running; per-pair failures
// are reported in the readings and store failures in CycleResult.Errors.
func (m *Monitor) Run(ctx context.Context, products []models.Product, sites []models.Site) (*CycleResult, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer m.running.Store(false)

	res := &CycleResult{ID: uuid.NewString(), StartedAt: m.now()}
	pairs := buildPairs(products, sites)
	log.Printf("[monitor] cycle %s: checking %d pairs", res.ID, len(pairs))

	res.Readings = m.scrapeAll(ctx, pairs)

	targets := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		targets[p.ID] = p.TargetPrice
	}
	for i := range res.Readings {
		r := &res.Readings[i]
		m.metrics.ObserveReading(*r)
		m.persist(ctx, r, res)
		if r.Changed {
			res.Changed = append(res.Changed, *r)
		}
		if r.Changed && r.HasPrice() && decimal.NewFromFloat(*r.Price).LessThanOrEqual(targets[r.ProductID]) {
			res.Alerts = append(res.Alerts, *r)
		}
	}

	res.FinishedAt = m.now()
	if err := m.store.SetLastCheck(ctx, res.FinishedAt); err != nil {
		m.persistFailed(res, &PersistenceError{Op: "last check", Err: err})
	}

	m.dispatch(ctx, res, products, targets)

	m.metrics.ObserveCycle(res.OK(), res.Duration(), len(res.Alerts))
	m.last.Store(res)
	log.Printf("[monitor] cycle %s done in %s: %d readings, %d changed, %d alerts, %d store errors",
		res.ID, res.Duration().Round(time.Millisecond), len(res.Readings), len(res.Changed), len(res.Alerts), len(res.Errors))
	return res, nil
}

type pair struct {
	product models.Product
	site    models.Site
	url     string
}

func buildPairs(products []models.Product, sites []models.Site) []pair {
	var pairs []pair
	for _, p := range products {
		for _, s := range sites {
			if !s.Enabled {
				continue
			}
			url := p.URLs[s.ID]
			if url == "" {
				continue
			}
			pairs = append(pairs, pair{product: p, site: s, url: url})
		}
	}
	return pairs
}

// scrapeAll runs every pair and waits for all of them. Tasks never return
// an error, so one failing pair cannot cancel the others.
func (m *Monitor) scrapeAll(ctx context.Context, pairs []pair) []models.Reading {
	readings := make([]models.Reading, len(pairs))
	var done atomic.Int32

	var g errgroup.Group
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}
	for i, pr := range pairs {
		g.Go(func() error {
			readings[i] = m.scrape(ctx, pr)
			n := done.Add(1)
			platform.ReportProgress(ctx, fmt.Sprintf("Checked %d/%d (%s on %s)", n, len(pairs), pr.product.Name, pr.site.Name))
			return nil
		})
	}
	g.Wait()
	return readings
}

func (m *Monitor) scrape(ctx context.Context, pr pair) (r models.Reading) {
	r = models.Reading{
		ProductID:   pr.product.ID,
		ProductName: pr.product.Name,
		SiteID:      pr.site.ID,
		SiteName:    pr.site.Name,
		URL:         pr.url,
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[monitor] panic scraping %s on %s: %v", pr.product.ID, pr.site.ID, rec)
			r.Price, r.Available = nil, false
			r.Error = fmt.Sprintf("internal error: %v", rec)
			r.Failure = models.FailureInternal
		}
		r.Timestamp = m.now()
	}()

	strategy, err := m.registry.Get(pr.site.ID)
	if err != nil {
		r.Error = err.Error()
		r.Failure = models.FailureInternal
		return r
	}

	result := strategy.Scrape(ctx, pr.url)
	r.Price = result.Price
	r.Available = result.Available && result.Price != nil
	r.Error = result.Error
	r.Failure = result.Failure
	r.Selector = result.Selector
	if r.Price == nil && r.Error == "" {
		r.Error = "no price returned"
		r.Failure = models.FailureExtraction
	}
	if r.Price != nil {
		r.Error, r.Failure = "", models.FailureNone
	}
	return r
}

// persist upserts the current price and records history when the detector
// asks for it. Failures are collected on res.
func (m *Monitor) persist(ctx context.Context, r *models.Reading, res *CycleResult) {
	if err := m.store.UpsertCurrentPrice(ctx, models.CurrentFromReading(*r)); err != nil {
		m.persistFailed(res, &PersistenceError{Op: "current price", ProductID: r.ProductID, SiteID: r.SiteID, Err: err})
	}
	if !r.HasPrice() {
		return
	}

	last, err := m.store.LastHistoryEntry(ctx, r.ProductID, r.SiteID)
	if err != nil {
		m.persistFailed(res, &PersistenceError{Op: "history lookup", ProductID: r.ProductID, SiteID: r.SiteID, Err: err})
		return
	}

	d := m.detector.Evaluate(*r, last)
	if !d.Record {
		return
	}
	entry := models.HistoryEntry{ProductID: r.ProductID, SiteID: r.SiteID, Price: *r.Price, CheckedAt: r.Timestamp}
	if err := m.store.AppendHistoryEntry(ctx, entry); err != nil {
		m.persistFailed(res, &PersistenceError{Op: "history entry", ProductID: r.ProductID, SiteID: r.SiteID, Err: err})
		return
	}
	r.Changed = d.Changed
	if !d.Bootstrap {
		log.Printf("[monitor] %.1f%% move for %s on %s: %s", d.RelativeChange*100, r.ProductID, r.SiteID, price.FormatFloatBRL(*r.Price))
	}
}

func (m *Monitor) persistFailed(res *CycleResult, err *PersistenceError) {
	log.Printf("[monitor] %v", err)
	m.metrics.PersistenceError()
	res.Errors = append(res.Errors, err)
}

// dispatch sends alerts, then a summary of every reading when something
// changed. Each call gets its own deadline so a stalled sink cannot hold the
// cycle open.
func (m *Monitor) dispatch(ctx context.Context, res *CycleResult, products []models.Product, targets map[string]decimal.Decimal) {
	for _, r := range res.Alerts {
		log.Printf("[monitor] alert: %s on %s at %s", r.ProductName, r.SiteName, price.FormatFloatBRL(*r.Price))
		err := m.withNotifyTimeout(ctx, func(ctx context.Context) error {
			return m.notifier.Notify(ctx, r, targets[r.ProductID])
		})
		if err != nil {
			log.Printf("[monitor] notify %s: %v", models.PairKey(r.ProductID, r.SiteID), err)
			m.metrics.NotificationError()
		}
	}
	if len(res.Changed) == 0 {
		return
	}
	if s, ok := m.notifier.(notify.Summarizer); ok {
		err := m.withNotifyTimeout(ctx, func(ctx context.Context) error {
			return s.SendSummary(ctx, res.Readings, products)
		})
		if err != nil {
			log.Printf("[monitor] summary: %v", err)
			m.metrics.NotificationError()
		}
	}
}

func (m *Monitor) withNotifyTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.notifyWait)
	defer cancel()
	return fn(ctx)
}
