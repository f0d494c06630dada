package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/lukman83/pricewatch/internal/httputil"
	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/notify"
	"github.com/lukman83/pricewatch/internal/observability"
	"github.com/lukman83/pricewatch/internal/platform"
	"github.com/lukman83/pricewatch/internal/sites"
	"github.com/lukman83/pricewatch/internal/store"
)

const magaluPage = `<html><body><div class="product-detail">
	<span data-testid="price-value">R$ 199,90</span>
</div></body></html>`

var pageSites = []models.Site{
	{ID: "amazon", Name: "Amazon", Enabled: true},
	{ID: "magazineluiza", Name: "Magazine Luiza", Enabled: true},
}

// hangingServer accepts requests and never answers until the test ends.
func hangingServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		ts.Close()
	})
	return ts
}

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(magaluPage))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func pageRegistry(f *httputil.Fetcher) *platform.Registry {
	reg := platform.NewRegistry()
	reg.Register("amazon", sites.New(sites.Amazon(), f))
	reg.Register("magazineluiza", sites.New(sites.MagazineLuiza(), f))
	return reg
}

func TestHungStoreDoesNotStallCycle(t *testing.T) {
	slow := hangingServer(t)
	fast := pageServer(t)

	f := httputil.NewFetcher(httputil.NewHTTPClient(nil))
	f.Retries = 2
	f.Timeout = 100 * time.Millisecond
	f.Backoff = 10 * time.Millisecond

	products := []models.Product{{
		ID:          "ssd",
		Name:        "SSD 1TB",
		TargetPrice: decimal.NewFromInt(100),
		URLs: map[string]string{
			"amazon":        slow.URL + "/dp/ssd",
			"magazineluiza": fast.URL + "/p/ssd",
		},
	}}
	m := New(Config{Registry: pageRegistry(f), Store: store.NewMemory(10), Products: products, Sites: pageSites})

	start := time.Now()
	res, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("cycle took %v with a hung store", elapsed)
	}

	hung := find(t, res.Readings, "ssd", "amazon")
	if hung.HasPrice() || hung.Failure != models.FailureFetch {
		t.Errorf("amazon reading = %+v, want fetch failure", hung)
	}
	ok := find(t, res.Readings, "ssd", "magazineluiza")
	if !ok.HasPrice() || *ok.Price != 199.90 {
		t.Errorf("magazineluiza reading = %+v, want 199.90", ok)
	}
	if m.Running() {
		t.Error("Running() = true after the cycle returned")
	}
}

func TestStalledNotifierDoesNotWedgeMonitor(t *testing.T) {
	ntfyServer := hangingServer(t)
	f := newFixture(t, nil)
	f.src.set("amazon", 150)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	// No client timeout: only the per-call deadline can unblock the send.
	sink := notify.NewDedup(notify.NewNtfy(ntfyServer.URL, "precos", &http.Client{}))
	m := New(Config{
		Registry:      f.reg,
		Store:         f.store,
		Notifier:      notify.Multi{sink},
		Metrics:       metrics,
		Products:      testProducts,
		Sites:         testSites,
		NotifyTimeout: 100 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		_, err := m.RunCycle(context.Background())
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunCycle: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cycle still running 5s after a stalled notification")
	}

	// Alert and summary both time out.
	if got := testutil.ToFloat64(metrics.NotificationErrors); got != 2 {
		t.Errorf("notification errors = %v, want 2", got)
	}
	if _, err := m.RunCycle(context.Background()); errors.Is(err, ErrCycleInProgress) {
		t.Error("next cycle rejected: monitor still marked running")
	}
}

func TestFanOutUnderRateLimitReachesEveryStore(t *testing.T) {
	ts := pageServer(t)

	f := httputil.NewFetcher(httputil.NewHTTPClient(nil))
	f.Retries = 1
	f.Timeout = 50 * time.Millisecond
	// 15 pairs at 50/s: the last waits ~280ms for a token, past Timeout.
	f.Limiter = rate.NewLimiter(50, 1)

	var products []models.Product
	for i := range 15 {
		products = append(products, models.Product{
			ID:          fmt.Sprintf("p%02d", i),
			Name:        fmt.Sprintf("Produto %d", i),
			TargetPrice: decimal.NewFromInt(100),
			URLs:        map[string]string{"magazineluiza": fmt.Sprintf("%s/p/%d", ts.URL, i)},
		})
	}
	m := New(Config{Registry: pageRegistry(f), Store: store.NewMemory(10), Products: products, Sites: pageSites})

	res, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(res.Readings) != len(products) {
		t.Fatalf("readings = %d, want %d", len(res.Readings), len(products))
	}
	for _, r := range res.Readings {
		if !r.HasPrice() {
			t.Errorf("%s: %s (%s), want a price from a healthy store", r.ProductID, r.Error, r.Failure)
		}
	}
}
