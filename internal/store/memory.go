package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lukman83/pricewatch/internal/models"
)

// Memory is an in-process Store. Data is lost on restart.
type Memory struct {
	retention int

	mu        sync.RWMutex
	current   map[string]models.CurrentPrice
	history   map[string][]models.HistoryEntry
	lastCheck time.Time
}

func NewMemory(retention int) *Memory {
	return &Memory{
		retention: retentionOrDefault(retention),
		current:   make(map[string]models.CurrentPrice),
		history:   make(map[string][]models.HistoryEntry),
	}
}

func (m *Memory) UpsertCurrentPrice(_ context.Context, cp models.CurrentPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current[models.PairKey(cp.ProductID, cp.SiteID)] = cp
	return nil
}

func (m *Memory) LastHistoryEntry(_ context.Context, productID, siteID string) (*models.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.history[models.PairKey(productID, siteID)]
	if len(entries) == 0 {
		return nil, nil
	}
	e := entries[len(entries)-1]
	return &e, nil
}

func (m *Memory) AppendHistoryEntry(_ context.Context, e models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.PairKey(e.ProductID, e.SiteID)
	entries := append(m.history[key], e)
	if over := len(entries) - m.retention; over > 0 {
		entries = append([]models.HistoryEntry(nil), entries[over:]...)
	}
	m.history[key] = entries
	return nil
}

func (m *Memory) SetLastCheck(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCheck = t
	return nil
}

func (m *Memory) LastCheck(_ context.Context) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCheck, !m.lastCheck.IsZero(), nil
}

func (m *Memory) ListCurrentPrices(_ context.Context) ([]models.CurrentPrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.CurrentPrice, 0, len(m.current))
	for _, cp := range m.current {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].SiteID < out[j].SiteID
	})
	return out, nil
}

func (m *Memory) ListHistory(_ context.Context, since time.Time) ([]models.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.HistoryEntry
	for _, entries := range m.history {
		for _, e := range entries {
			if !e.CheckedAt.Before(since) {
				out = append(out, e)
			}
		}
	}
	sortHistory(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

func sortHistory(entries []models.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CheckedAt.Before(entries[j].CheckedAt)
	})
}
