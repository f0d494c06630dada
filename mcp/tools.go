package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lukman83/pricewatch/internal/monitor"
	"github.com/lukman83/pricewatch/internal/price"
)

type tools struct {
	Deps
}

func registerTools(s *server.MCPServer, d Deps) {
	t := &tools{Deps: d}

	// run_cycle
	runTool := mcp.NewTool("run_cycle",
		mcp.WithDescription("Check every tracked product on every enabled store now, record significant price moves and send alerts"),
	)
	s.AddTool(runTool, t.handleRunCycle)

	// list_prices
	pricesTool := mcp.NewTool("list_prices",
		mcp.WithDescription("List the latest known price of every tracked product on every store, with the last and next check times"),
	)
	s.AddTool(pricesTool, t.handleListPrices)

	// price_history
	historyTool := mcp.NewTool("price_history",
		mcp.WithDescription("Get the recorded price history, optionally for one product and/or store"),
		mcp.WithString("product_id",
			mcp.Description("Product id from the catalog"),
		),
		mcp.WithString("store",
			mcp.Description("Store id (amazon, casasbahia, magazineluiza, mercadolivre, terabyte)"),
		),
	)
	s.AddTool(historyTool, t.handlePriceHistory)

	// check_url
	checkTool := mcp.NewTool("check_url",
		mcp.WithDescription("Scrape a single product page without saving anything"),
		mcp.WithString("store",
			mcp.Required(),
			mcp.Description("Store id"),
		),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Product page URL"),
		),
	)
	s.AddTool(checkTool, t.handleCheckURL)
}

type cycleSummary struct {
	CycleID  string   `json:"cycle_id"`
	Duration string   `json:"duration"`
	Readings any      `json:"readings"`
	Changed  int      `json:"changed"`
	Alerts   int      `json:"alerts"`
	Errors   []string `json:"errors,omitempty"`
}

func (t *tools) handleRunCycle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.Service.Scrape(context.WithoutCancel(ctx))
	if errors.Is(err, monitor.ErrCycleInProgress) {
		return mcp.NewToolResultError("a price check is already running, try again later"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cycle error: %v", err)), nil
	}

	out := cycleSummary{
		CycleID:  res.ID,
		Duration: res.Duration().String(),
		Readings: res.Readings,
		Changed:  len(res.Changed),
		Alerts:   len(res.Alerts),
	}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	return jsonResult(out)
}

func (t *tools) handleListPrices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := t.Service.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prices error: %v", err)), nil
	}
	return jsonResult(snap)
}

func (t *tools) handlePriceHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	productID := request.GetString("product_id", "")
	store := request.GetString("store", "")

	history, err := t.Service.History(ctx, productID, store)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history error: %v", err)), nil
	}
	return jsonResult(history)
}

func (t *tools) handleCheckURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store := request.GetString("store", "")
	url := request.GetString("url", "")
	if store == "" || url == "" {
		return mcp.NewToolResultError("store and url are required"), nil
	}

	strategy, err := t.Registry.Get(store)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err)), nil
	}

	res := strategy.Scrape(ctx, url)
	out := map[string]any{
		"store":     store,
		"url":       url,
		"available": res.Available,
		"selector":  res.Selector,
	}
	if res.Price != nil {
		out["price"] = *res.Price
		out["formatted"] = price.FormatFloatBRL(*res.Price)
	} else {
		out["error"] = res.Error
		out["failure"] = res.Failure
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
