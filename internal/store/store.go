// Package store persists current prices, price history and the last check
// time.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lukman83/pricewatch/internal/models"
)

// DefaultRetention is the history cap per (product, site) pair.
const DefaultRetention = 100

// Store is the persistence the monitor needs. Implementations must be
// read-your-writes for a single writer.
type Store interface {
	// UpsertCurrentPrice replaces the record for the pair.
	UpsertCurrentPrice(ctx context.Context, cp models.CurrentPrice) error
	// LastHistoryEntry returns nil when the pair has no history.
	LastHistoryEntry(ctx context.Context, productID, siteID string) (*models.HistoryEntry, error)
	// AppendHistoryEntry appends e and evicts the oldest entries beyond the
	// retention cap.
	AppendHistoryEntry(ctx context.Context, e models.HistoryEntry) error
	SetLastCheck(ctx context.Context, t time.Time) error
	// LastCheck reports false when no cycle has completed yet.
	LastCheck(ctx context.Context) (time.Time, bool, error)
	ListCurrentPrices(ctx context.Context) ([]models.CurrentPrice, error)
	// ListHistory returns entries checked at or after since, oldest first.
	ListHistory(ctx context.Context, since time.Time) ([]models.HistoryEntry, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	URL       string
	Retention int
}

// Open connects to the configured backend. Postgres schemas are migrated
// on open.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemory(opts.Retention), nil
	case BackendPostgres:
		s, err := NewPostgres(ctx, opts.URL, opts.Retention)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case BackendRedis:
		return NewRedis(ctx, opts.URL, opts.Retention)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want memory, postgres or redis)", opts.Backend)
	}
}

func retentionOrDefault(n int) int {
	if n <= 0 {
		return DefaultRetention
	}
	return n
}
