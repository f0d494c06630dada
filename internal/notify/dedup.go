package notify

import (
	"context"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/lukman83/pricewatch/internal/models"
)

// Dedup suppresses repeat alerts for the same product, store and price.
// Keys are added only after the wrapped sink succeeds, so a failed send is
// retried. The set lives in memory and is empty after a restart, which can
// repeat an alert once per process.
type Dedup struct {
	Next Notifier

	mu   sync.Mutex
	sent map[string]struct{}
}

func NewDedup(next Notifier) *Dedup {
	return &Dedup{Next: next, sent: make(map[string]struct{})}
}

func dedupKey(r models.Reading) string {
	return models.PairKey(r.ProductID, r.SiteID) + "-" + strconv.FormatFloat(*r.Price, 'f', -1, 64)
}

func (d *Dedup) Notify(ctx context.Context, r models.Reading, target decimal.Decimal) error {
	if !Eligible(r, target) {
		return nil
	}
	key := dedupKey(r)

	d.mu.Lock()
	_, seen := d.sent[key]
	d.mu.Unlock()
	if seen {
		return nil
	}

	if err := d.Next.Notify(ctx, r, target); err != nil {
		return err
	}

	d.mu.Lock()
	d.sent[key] = struct{}{}
	d.mu.Unlock()
	return nil
}

// Reset forgets every sent key.
func (d *Dedup) Reset() {
	d.mu.Lock()
	d.sent = make(map[string]struct{})
	d.mu.Unlock()
}

func (d *Dedup) SendSummary(ctx context.Context, readings []models.Reading, products []models.Product) error {
	if s, ok := d.Next.(Summarizer); ok {
		return s.SendSummary(ctx, readings, products)
	}
	return nil
}

func (d *Dedup) SendTest(ctx context.Context) error {
	if t, ok := d.Next.(Tester); ok {
		return t.SendTest(ctx)
	}
	return nil
}
