package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/observability"
	"github.com/lukman83/pricewatch/internal/platform"
	"github.com/lukman83/pricewatch/internal/store"
)

// priceSource serves a settable price per product URL. set only targets
// the "ssd" product; other URLs have no price.
type priceSource struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (p *priceSource) set(site string, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[testProducts[0].URLs[site]] = v
}

func (p *priceSource) strategy() platform.Strategy {
	return platform.StrategyFunc(func(ctx context.Context, url string) platform.Result {
		p.mu.Lock()
		defer p.mu.Unlock()
		v, ok := p.prices[url]
		if !ok {
			return platform.Result{Error: "price not found", Failure: models.FailureExtraction}
		}
		return platform.Result{Price: &v, Available: true, Selector: ".price"}
	})
}

type recordingNotifier struct {
	mu        sync.Mutex
	alerts    []models.Reading
	summaries [][]models.Reading
}

func (n *recordingNotifier) Notify(_ context.Context, r models.Reading, _ decimal.Decimal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, r)
	return nil
}

func (n *recordingNotifier) SendSummary(_ context.Context, rs []models.Reading, _ []models.Product) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, rs)
	return nil
}

var (
	testSites = []models.Site{
		{ID: "amazon", Name: "Amazon", Enabled: true},
		{ID: "terabyte", Name: "Terabyte Shop", Enabled: true},
		{ID: "kabum", Name: "KaBuM!", Enabled: false},
	}
	testProducts = []models.Product{
		{
			ID:          "ssd",
			Name:        "SSD 1TB",
			TargetPrice: decimal.NewFromInt(200),
			URLs: map[string]string{
				"amazon":   "https://www.amazon.com.br/dp/ssd",
				"terabyte": "https://www.terabyteshop.com.br/produto/ssd",
				"kabum":    "https://www.kabum.com.br/produto/ssd",
			},
		},
		{
			ID:          "gpu",
			Name:        "RTX 4060",
			TargetPrice: decimal.NewFromInt(1800),
			URLs:        map[string]string{"amazon": "https://www.amazon.com.br/dp/gpu"},
		},
	}
)

type fixture struct {
	src      *priceSource
	reg      *platform.Registry
	store    store.Store
	notifier *recordingNotifier
	monitor  *Monitor
}

func newFixture(t *testing.T, st store.Store) *fixture {
	t.Helper()
	f := &fixture{
		src:      &priceSource{prices: map[string]float64{}},
		reg:      platform.NewRegistry(),
		store:    st,
		notifier: &recordingNotifier{},
	}
	if f.store == nil {
		f.store = store.NewMemory(10)
	}
	for _, s := range testSites {
		f.reg.Register(s.ID, f.src.strategy())
	}
	f.monitor = New(Config{
		Registry: f.reg,
		Store:    f.store,
		Notifier: f.notifier,
		Products: testProducts,
		Sites:    testSites,
	})
	return f
}

func find(t *testing.T, rs []models.Reading, product, site string) models.Reading {
	t.Helper()
	for _, r := range rs {
		if r.ProductID == product && r.SiteID == site {
			return r
		}
	}
	t.Fatalf("no reading for %s on %s", product, site)
	return models.Reading{}
}

func TestRunBuildsPairs(t *testing.T) {
	f := newFixture(t, nil)
	f.src.set("amazon", 250)
	f.src.set("terabyte", 240)

	res, err := f.monitor.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	// kabum is disabled; gpu has only an amazon URL.
	if len(res.Readings) != 3 {
		t.Fatalf("readings = %d, want 3", len(res.Readings))
	}
	if res.ID == "" || res.FinishedAt.Before(res.StartedAt) {
		t.Errorf("bad cycle metadata: %+v", res)
	}
	if _, ok, _ := f.store.LastCheck(context.Background()); !ok {
		t.Error("last check not written")
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	f := newFixture(t, nil)
	f.src.set("amazon", 190)
	f.reg.Register("terabyte", platform.StrategyFunc(func(ctx context.Context, url string) platform.Result {
		return platform.Result{Error: "fetch https://www.terabyteshop.com.br: context deadline exceeded", Failure: models.FailureFetch}
	}))

	res, err := f.monitor.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	ok := find(t, res.Readings, "ssd", "amazon")
	if !ok.HasPrice() || !ok.Available {
		t.Errorf("amazon reading = %+v, want price", ok)
	}
	bad := find(t, res.Readings, "ssd", "terabyte")
	if bad.HasPrice() || bad.Available || bad.Failure != models.FailureFetch || bad.Error == "" {
		t.Errorf("terabyte reading = %+v, want fetch failure", bad)
	}
	if !res.OK() {
		t.Errorf("cycle errors = %v, want none", res.Errors)
	}
}

func TestPanicIsolation(t *testing.T) {
	f := newFixture(t, nil)
	f.src.set("amazon", 300)
	f.reg.Register("terabyte", platform.StrategyFunc(func(ctx context.Context, url string) platform.Result {
		panic("nil selection")
	}))

	res, err := f.monitor.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	r := find(t, res.Readings, "ssd", "terabyte")
	if r.Failure != models.FailureInternal || r.Error == "" || r.Timestamp.IsZero() {
		t.Errorf("reading = %+v, want internal failure", r)
	}
	if !find(t, res.Readings, "ssd", "amazon").HasPrice() {
		t.Error("panic in one task affected another")
	}
}

func TestUnregisteredSiteYieldsReading(t *testing.T) {
	f := newFixture(t, nil)
	sites := append([]models.Site{}, testSites...)
	sites[2].Enabled = true // kabum has no strategy

	res, err := f.monitor.Run(context.Background(), testProducts, sites)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	r := find(t, res.Readings, "ssd", "kabum")
	if r.HasPrice() || r.Error == "" {
		t.Errorf("reading = %+v, want error", r)
	}
}

func TestNotificationGating(t *testing.T) {
	f := newFixture(t, nil)
	f.src.set("amazon", 150)
	ctx := context.Background()

	res, _ := f.monitor.RunCycle(ctx)
	if len(res.Alerts) != 1 || res.Alerts[0].SiteID != "amazon" || res.Alerts[0].ProductID != "ssd" {
		t.Fatalf("first cycle alerts = %+v, want ssd on amazon", res.Alerts)
	}
	if len(f.notifier.alerts) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.notifier.alerts))
	}

	// Same price: below target but unchanged, so no alert.
	res, _ = f.monitor.RunCycle(ctx)
	if len(res.Alerts) != 0 || len(res.Changed) != 0 {
		t.Errorf("second cycle alerts=%d changed=%d, want 0", len(res.Alerts), len(res.Changed))
	}
	if len(f.notifier.alerts) != 1 {
		t.Errorf("notifications = %d, want still 1", len(f.notifier.alerts))
	}
	if len(f.notifier.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1 (only the cycle with changes)", len(f.notifier.summaries))
	}
	// The summary covers every pair so failed stores can be listed.
	if got := len(f.notifier.summaries[0]); got != 3 {
		t.Errorf("summary readings = %d, want 3", got)
	}
}

func TestHistoryThresholdThroughCycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, step := range []struct {
		price   float64
		changed bool
	}{
		{100, true},
		{104.99, false},
		{105.00, true},
		{104.00, false},
	} {
		f.src.set("terabyte", step.price)
		res, err := f.monitor.RunCycle(ctx)
		if err != nil {
			t.Fatalf("RunCycle: %v", err)
		}
		if got := find(t, res.Readings, "ssd", "terabyte").Changed; got != step.changed {
			t.Errorf("price %.2f: changed = %v, want %v", step.price, got, step.changed)
		}
	}

	entries, _ := f.store.ListHistory(ctx, time.Time{})
	var prices []float64
	for _, e := range entries {
		if e.SiteID == "terabyte" {
			prices = append(prices, e.Price)
		}
	}
	if len(prices) != 2 || prices[0] != 100 || prices[1] != 105 {
		t.Errorf("history = %v, want [100 105]", prices)
	}
}

func TestIdempotentUpsertAcrossCycles(t *testing.T) {
	f := newFixture(t, nil)
	f.src.set("amazon", 210)
	f.src.set("terabyte", 205)
	ctx := context.Background()

	f.monitor.RunCycle(ctx)
	first, _ := f.store.ListCurrentPrices(ctx)
	f.monitor.RunCycle(ctx)
	second, _ := f.store.ListCurrentPrices(ctx)

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("records = %d then %d, want 3", len(first), len(second))
	}
	for i := range second {
		if second[i].CheckedAt.Before(first[i].CheckedAt) {
			t.Errorf("%s/%s timestamp went backwards", second[i].ProductID, second[i].SiteID)
		}
	}
}

func TestReentrancyGuard(t *testing.T) {
	f := newFixture(t, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.reg.Register("amazon", platform.StrategyFunc(func(ctx context.Context, url string) platform.Result {
		once.Do(func() { close(started) })
		<-release
		v := 100.0
		return platform.Result{Price: &v, Available: true}
	}))

	done := make(chan error, 1)
	go func() {
		_, err := f.monitor.RunCycle(context.Background())
		done <- err
	}()

	<-started
	if !f.monitor.Running() {
		t.Error("Running() = false during a cycle")
	}
	if _, err := f.monitor.RunCycle(context.Background()); !errors.Is(err, ErrCycleInProgress) {
		t.Errorf("concurrent RunCycle err = %v, want ErrCycleInProgress", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if _, err := f.monitor.RunCycle(context.Background()); err != nil {
		t.Errorf("cycle after completion: %v", err)
	}
}

type failingStore struct {
	store.Store
	site string
}

func (s *failingStore) UpsertCurrentPrice(ctx context.Context, cp models.CurrentPrice) error {
	if cp.SiteID == s.site {
		return errors.New("connection reset by peer")
	}
	return s.Store.UpsertCurrentPrice(ctx, cp)
}

func TestPersistenceErrorsAreCollected(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, &failingStore{Store: store.NewMemory(10), site: "terabyte"})
	f.monitor.metrics = observability.NewMetrics(reg)
	f.src.set("amazon", 250)
	f.src.set("terabyte", 260)

	res, err := f.monitor.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.OK() {
		t.Fatal("OK() = true despite store failure")
	}
	var pe *PersistenceError
	if !errors.As(res.Errors[0], &pe) || pe.SiteID != "terabyte" || pe.Op != "current price" {
		t.Errorf("errors = %v", res.Errors)
	}
	if len(res.Readings) != 3 {
		t.Errorf("readings = %d, want 3", len(res.Readings))
	}
	if got := testutil.ToFloat64(f.monitor.metrics.PersistenceErrors); got != 1 {
		t.Errorf("persistence error metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(f.monitor.metrics.CyclesTotal.WithLabelValues("partial")); got != 1 {
		t.Errorf("partial cycles = %v, want 1", got)
	}
	if f.monitor.LastResult() != res {
		t.Error("LastResult not updated")
	}
}

func TestConcurrencyLimit(t *testing.T) {
	f := newFixture(t, nil)
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	slow := platform.StrategyFunc(func(ctx context.Context, url string) platform.Result {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		v := 99.0
		return platform.Result{Price: &v, Available: true}
	})
	f.reg.Register("amazon", slow)
	f.reg.Register("terabyte", slow)
	f.monitor.concurrency = 1

	if _, err := f.monitor.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if peak != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak)
	}
}
