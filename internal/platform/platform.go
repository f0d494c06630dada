package platform

import (
	"context"

	"github.com/lukman83/pricewatch/internal/models"
)

// Result is what a strategy learned from one product page.
// Error is non-empty exactly when Price is nil.
type Result struct {
	Price     *float64
	Available bool
	Error     string
	Failure   models.FailureKind
	Selector  string
}

// Strategy extracts price and availability from one store's product pages.
// Implementations never panic on bad input and report every failure through
// Result.
type Strategy interface {
	Name() string
	Scrape(ctx context.Context, url string) Result
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc func(ctx context.Context, url string) Result

func (f StrategyFunc) Name() string { return "func" }

func (f StrategyFunc) Scrape(ctx context.Context, url string) Result { return f(ctx, url) }
