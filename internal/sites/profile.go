// Package sites holds the price extraction strategies for each supported
// store. Every store is a Profile value run by the same pageStrategy.
package sites

import (
	"regexp"
	"time"
)

// Marker flags a page as unavailable when Selector matches. When Text is set
// the matched element's text must also contain it.
type Marker struct {
	Selector string
	Text     string
}

// Profile describes how to read one store's product page.
type Profile struct {
	ID   string
	Name string

	// MainContent scopes the first locator pass to the primary product.
	// Empty means the store has no reliable region and only the full
	// document is searched.
	MainContent string

	// PriceSelectors are tried in order. The first one whose first match
	// yields a positive price wins.
	PriceSelectors []string

	// Noise is removed from the document before anything else.
	Noise []string

	UnavailablePhrases []string
	UnavailableMarkers []Marker
	// FoldCase matches UnavailablePhrases case-insensitively.
	FoldCase bool

	// TextFallback is scanned over the visible text when no locator
	// matched. Matches at or below FallbackFloor are ignored.
	TextFallback  *regexp.Regexp
	FallbackFloor float64

	// Navigation sends Referer and Sec-Fetch headers and uses the slower
	// timeout and backoff.
	Navigation bool
}

const (
	navigationTimeout = 20 * time.Second
	navigationBackoff = 3 * time.Second
)
