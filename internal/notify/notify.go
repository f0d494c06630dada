// Package notify delivers price alerts. Delivery is best effort: a failed
// send is reported to the caller and retried on the next changed reading.
package notify

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/lukman83/pricewatch/internal/models"
)

// Notifier sends one alert for a reading that reached its target.
type Notifier interface {
	Notify(ctx context.Context, r models.Reading, target decimal.Decimal) error
}

// Summarizer is implemented by sinks that can send a digest of a cycle.
type Summarizer interface {
	SendSummary(ctx context.Context, readings []models.Reading, products []models.Product) error
}

// Tester is implemented by sinks that can send a configuration check.
type Tester interface {
	SendTest(ctx context.Context) error
}

// Eligible reports whether a sink should alert on r: a price is present,
// the product is available and the price is at or below target.
func Eligible(r models.Reading, target decimal.Decimal) bool {
	if !r.HasPrice() || !r.Available {
		return false
	}
	return decimal.NewFromFloat(*r.Price).LessThanOrEqual(target)
}

// Multi fans out to every sink.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, r models.Reading, target decimal.Decimal) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, r, target); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendSummary(ctx context.Context, readings []models.Reading, products []models.Product) error {
	var errs []error
	for _, n := range m {
		if s, ok := n.(Summarizer); ok {
			if err := s.SendSummary(ctx, readings, products); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// SendTest reports an error when no sink supports test messages.
func (m Multi) SendTest(ctx context.Context) error {
	var (
		errs []error
		sent bool
	)
	for _, n := range m {
		if t, ok := n.(Tester); ok {
			sent = true
			if err := t.SendTest(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if !sent {
		return errors.New("no notifier configured")
	}
	return errors.Join(errs...)
}

// Nop discards every alert.
type Nop struct{}

func (Nop) Notify(context.Context, models.Reading, decimal.Decimal) error { return nil }
