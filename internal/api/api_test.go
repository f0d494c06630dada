package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/monitor"
	"github.com/lukman83/pricewatch/internal/store"
)

type fakeCycler struct {
	res     *monitor.CycleResult
	err     error
	calls   int
	running bool
}

func (f *fakeCycler) RunCycle(ctx context.Context) (*monitor.CycleResult, error) {
	f.calls++
	return f.res, f.err
}

func (f *fakeCycler) Running() bool { return f.running }

func (f *fakeCycler) Products() []models.Product {
	return []models.Product{{
		ID:          "ssd",
		Name:        "SSD 1TB",
		TargetPrice: decimal.RequireFromString("399.90"),
		URLs:        map[string]string{"amazon": "https://www.amazon.com.br/dp/ssd"},
	}}
}

func (f *fakeCycler) Sites() []models.Site {
	return []models.Site{{ID: "amazon", Name: "Amazon", Enabled: true}}
}

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func ptr(f float64) *float64 { return &f }

func newTestService(t *testing.T, c *fakeCycler) (*Service, store.Store) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory(10)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(st.UpsertCurrentPrice(ctx, models.CurrentPrice{ProductID: "ssd", SiteID: "amazon", Price: ptr(389.9), Available: true, CheckedAt: now.Add(-time.Minute)}))
	must(st.UpsertCurrentPrice(ctx, models.CurrentPrice{ProductID: "old", SiteID: "kabum", Error: "gone", CheckedAt: now.Add(-time.Hour)}))
	must(st.AppendHistoryEntry(ctx, models.HistoryEntry{ProductID: "ssd", SiteID: "amazon", Price: 450, CheckedAt: now.Add(-60 * 24 * time.Hour)}))
	must(st.AppendHistoryEntry(ctx, models.HistoryEntry{ProductID: "ssd", SiteID: "amazon", Price: 420, CheckedAt: now.Add(-2 * 24 * time.Hour)}))
	must(st.AppendHistoryEntry(ctx, models.HistoryEntry{ProductID: "ssd", SiteID: "amazon", Price: 389.9, CheckedAt: now.Add(-time.Minute)}))
	must(st.SetLastCheck(ctx, now.Add(-time.Minute)))

	svc := NewService(st, c, 30*time.Minute)
	svc.now = func() time.Time { return now }
	return svc, st
}

func serve(svc *Service, apiKey string, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	svc.Register(mux, apiKey)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPrices(t *testing.T) {
	svc, _ := newTestService(t, &fakeCycler{})
	rec := serve(svc, "", httptest.NewRequest(http.MethodGet, "/api/prices", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var body struct {
		Success   bool               `json:"success"`
		LastCheck *time.Time         `json:"lastCheck"`
		NextCheck *time.Time         `json:"nextCheck"`
		Prices    []PriceView        `json:"prices"`
		History   map[string][]Point `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.LastCheck == nil || !body.LastCheck.Equal(now.Add(-time.Minute)) {
		t.Errorf("lastCheck = %v", body.LastCheck)
	}
	if body.NextCheck == nil || !body.NextCheck.Equal(now.Add(29*time.Minute)) {
		t.Errorf("nextCheck = %v, want last check + interval", body.NextCheck)
	}
	if len(body.Prices) != 2 {
		t.Fatalf("prices = %+v", body.Prices)
	}
	first := body.Prices[0]
	if first.ProductName != "SSD 1TB" || first.SiteName != "Amazon" || first.URL == "" || first.TargetPrice != 399.9 {
		t.Errorf("enriched view = %+v", first)
	}
	// Pairs missing from the catalog fall back to their ids.
	if body.Prices[1].ProductName != "old" || body.Prices[1].Price != nil {
		t.Errorf("unknown pair view = %+v", body.Prices[1])
	}
	pts := body.History["ssd-amazon"]
	if len(pts) != 2 || pts[0].Price != 420 || pts[1].Price != 389.9 {
		t.Errorf("history = %+v, want the last 30 days oldest first", pts)
	}
}

func TestNextCheckFromScheduler(t *testing.T) {
	svc, _ := newTestService(t, &fakeCycler{})
	due := now.Add(5 * time.Minute)
	svc.Next = func() time.Time { return due }

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.NextCheck == nil || !snap.NextCheck.Equal(due) {
		t.Errorf("nextCheck = %v, want %v", snap.NextCheck, due)
	}
}

func TestHistoryFilter(t *testing.T) {
	svc, st := newTestService(t, &fakeCycler{})
	st.AppendHistoryEntry(context.Background(), models.HistoryEntry{ProductID: "gpu", SiteID: "terabyte", Price: 1999, CheckedAt: now})

	rec := serve(svc, "", httptest.NewRequest(http.MethodGet, "/api/history?productId=ssd&store=amazon", nil))
	var body struct {
		History map[string][]Point `json:"history"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.History) != 1 || len(body.History["ssd-amazon"]) != 3 {
		t.Errorf("filtered history = %+v", body.History)
	}

	rec = serve(svc, "", httptest.NewRequest(http.MethodGet, "/api/history", nil))
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.History) != 2 {
		t.Errorf("full history keys = %d, want 2", len(body.History))
	}
}

func TestScrape(t *testing.T) {
	c := &fakeCycler{res: &monitor.CycleResult{
		ID:         "cycle-1",
		StartedAt:  now,
		FinishedAt: now.Add(1500 * time.Millisecond),
		Readings:   []models.Reading{{ProductID: "ssd", SiteID: "amazon", Price: ptr(389.9), Available: true}},
	}}
	svc, _ := newTestService(t, c)

	rec := serve(svc, "", httptest.NewRequest(http.MethodPost, "/api/scrape", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var body scrapeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.CycleID != "cycle-1" || len(body.Prices) != 1 || body.Duration != "1.5s" {
		t.Errorf("body = %+v", body)
	}
	if c.calls != 1 {
		t.Errorf("cycles = %d", c.calls)
	}
}

func TestScrapeConflict(t *testing.T) {
	svc, _ := newTestService(t, &fakeCycler{err: monitor.ErrCycleInProgress})
	rec := serve(svc, "", httptest.NewRequest(http.MethodGet, "/api/scrape", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestScrapeRequiresKey(t *testing.T) {
	c := &fakeCycler{res: &monitor.CycleResult{ID: "x"}}
	svc, _ := newTestService(t, c)

	rec := serve(svc, "secret", httptest.NewRequest(http.MethodPost, "/api/scrape", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/scrape", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if rec := serve(svc, "secret", req); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d", rec.Code)
	}
	req = httptest.NewRequest(http.MethodPost, "/api/scrape", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if rec := serve(svc, "secret", req); rec.Code != http.StatusOK {
		t.Errorf("good token: status = %d", rec.Code)
	}
	// Reads stay open.
	if rec := serve(svc, "secret", httptest.NewRequest(http.MethodGet, "/api/prices", nil)); rec.Code != http.StatusOK {
		t.Errorf("prices: status = %d", rec.Code)
	}
	if c.calls != 1 {
		t.Errorf("cycles = %d, want 1", c.calls)
	}
}

func TestHealth(t *testing.T) {
	svc, _ := newTestService(t, &fakeCycler{running: true})
	rec := serve(svc, "", httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["running"] != true {
		t.Errorf("body = %v", body)
	}
}
