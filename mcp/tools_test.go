package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/lukman83/pricewatch/internal/api"
	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/monitor"
	"github.com/lukman83/pricewatch/internal/platform"
	"github.com/lukman83/pricewatch/internal/store"
)

func newTools(t *testing.T) (*tools, store.Store) {
	t.Helper()
	reg := platform.NewRegistry()
	reg.Register("amazon", platform.StrategyFunc(func(ctx context.Context, url string) platform.Result {
		if strings.Contains(url, "missing") {
			return platform.Result{Error: "price not found", Failure: models.FailureExtraction}
		}
		v := 1234.5
		return platform.Result{Price: &v, Available: true, Selector: ".a-price"}
	}))

	st := store.NewMemory(10)
	m := monitor.New(monitor.Config{
		Registry: reg,
		Store:    st,
		Products: []models.Product{{
			ID:          "tv",
			Name:        "Smart TV",
			TargetPrice: decimal.NewFromInt(2000),
			URLs:        map[string]string{"amazon": "https://www.amazon.com.br/dp/tv"},
		}},
		Sites: []models.Site{{ID: "amazon", Name: "Amazon", Enabled: true}},
	})
	return &tools{Deps{Service: api.NewService(st, m, time.Hour), Registry: reg}}, st
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T", res.Content[0])
	}
	return tc.Text
}

func TestRunCycleThenListPrices(t *testing.T) {
	tl, _ := newTools(t)
	ctx := context.Background()

	res, err := tl.handleRunCycle(ctx, call(nil))
	if err != nil || res.IsError {
		t.Fatalf("run_cycle: %v %s", err, text(t, res))
	}
	var summary cycleSummary
	if err := json.Unmarshal([]byte(text(t, res)), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.CycleID == "" || summary.Changed != 1 || summary.Alerts != 1 {
		t.Errorf("summary = %+v", summary)
	}

	res, _ = tl.handleListPrices(ctx, call(nil))
	var snap api.Snapshot
	if err := json.Unmarshal([]byte(text(t, res)), &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Prices) != 1 || snap.Prices[0].ProductName != "Smart TV" || snap.LastCheck == nil {
		t.Errorf("snapshot = %+v", snap)
	}

	res, _ = tl.handlePriceHistory(ctx, call(map[string]any{"product_id": "tv"}))
	if !strings.Contains(text(t, res), `"tv-amazon"`) {
		t.Errorf("history = %s", text(t, res))
	}
}

func TestCheckURL(t *testing.T) {
	tl, st := newTools(t)
	ctx := context.Background()

	res, _ := tl.handleCheckURL(ctx, call(map[string]any{"store": "amazon", "url": "https://www.amazon.com.br/dp/x"}))
	if res.IsError || !strings.Contains(text(t, res), "R$ 1.234,50") {
		t.Errorf("check_url = %s", text(t, res))
	}

	res, _ = tl.handleCheckURL(ctx, call(map[string]any{"store": "amazon", "url": "https://www.amazon.com.br/missing"}))
	if !strings.Contains(text(t, res), "extraction") {
		t.Errorf("check_url missing = %s", text(t, res))
	}

	res, _ = tl.handleCheckURL(ctx, call(map[string]any{"store": "kabum", "url": "https://kabum.example"}))
	if !res.IsError {
		t.Error("unknown store should be a tool error")
	}
	res, _ = tl.handleCheckURL(ctx, call(map[string]any{"store": "amazon"}))
	if !res.IsError {
		t.Error("missing url should be a tool error")
	}

	// Ad-hoc checks are never persisted.
	if cur, _ := st.ListCurrentPrices(ctx); len(cur) != 0 {
		t.Errorf("check_url wrote %d current prices", len(cur))
	}
}
