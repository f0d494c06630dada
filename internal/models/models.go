package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a tracked item with one product page per site.
type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	TargetPrice decimal.Decimal   `json:"target_price"`
	URLs        map[string]string `json:"urls"`
}

// Site is a store that can be scraped.
type Site struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// FailureKind classifies why a reading has no price.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureFetch      FailureKind = "fetch"
	FailureParse      FailureKind = "parse"
	FailureExtraction FailureKind = "extraction"
	FailureInternal   FailureKind = "internal"
)

// Reading is the outcome of one scrape attempt for a (product, site) pair.
type Reading struct {
	ProductID   string      `json:"product_id"`
	ProductName string      `json:"product_name"`
	SiteID      string      `json:"store"`
	SiteName    string      `json:"store_name"`
	URL         string      `json:"url"`
	Price       *float64    `json:"price"`
	Available   bool        `json:"available"`
	Error       string      `json:"error,omitempty"`
	Failure     FailureKind `json:"failure,omitempty"`
	Selector    string      `json:"selector,omitempty"`
	Changed     bool        `json:"changed"`
	Timestamp   time.Time   `json:"timestamp"`
}

// HasPrice reports whether a price was determined.
func (r Reading) HasPrice() bool { return r.Price != nil }

// CurrentPrice is the last known state of a (product, site) pair.
type CurrentPrice struct {
	ProductID string    `json:"product_id"`
	SiteID    string    `json:"store"`
	Price     *float64  `json:"price"`
	Available bool      `json:"available"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HistoryEntry is a recorded significant price point.
type HistoryEntry struct {
	ProductID string    `json:"product_id"`
	SiteID    string    `json:"store"`
	Price     float64   `json:"price"`
	CheckedAt time.Time `json:"checked_at"`
}

// CurrentFromReading mirrors a reading into its persisted form.
func CurrentFromReading(r Reading) CurrentPrice {
	return CurrentPrice{
		ProductID: r.ProductID,
		SiteID:    r.SiteID,
		Price:     r.Price,
		Available: r.Available,
		Error:     r.Error,
		CheckedAt: r.Timestamp,
	}
}

// PairKey identifies a (product, site) pair.
func PairKey(productID, siteID string) string {
	return productID + "-" + siteID
}
