package sites

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jsonLDItem is the subset of a schema.org node we read.
type jsonLDItem struct {
	Type   json.RawMessage `json:"@type"`
	Offers json.RawMessage `json:"offers"`
	Graph  []jsonLDItem    `json:"@graph"`
}

type jsonLDOffer struct {
	Price    json.RawMessage `json:"price"`
	LowPrice json.RawMessage `json:"lowPrice"`
}

// structuredPrice reads the first positive Product offer price from the
// page's JSON-LD blocks. Stores that render the price client-side usually
// still embed it there.
func structuredPrice(doc *goquery.Document) (float64, bool) {
	var (
		value float64
		found bool
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		data := strings.TrimSpace(s.Text())
		if data == "" {
			return true
		}
		var items []jsonLDItem
		if strings.HasPrefix(data, "[") {
			if err := json.Unmarshal([]byte(data), &items); err != nil {
				return true
			}
		} else {
			var item jsonLDItem
			if err := json.Unmarshal([]byte(data), &item); err != nil {
				return true
			}
			items = append([]jsonLDItem{item}, item.Graph...)
		}
		for i := range items {
			if v, ok := productPrice(&items[i]); ok {
				value, found = v, true
				return false
			}
		}
		return true
	})
	return value, found
}

func productPrice(item *jsonLDItem) (float64, bool) {
	if !hasType(item.Type, "Product") || len(item.Offers) == 0 {
		return 0, false
	}
	var offers []jsonLDOffer
	if err := json.Unmarshal(item.Offers, &offers); err != nil {
		var one jsonLDOffer
		if err := json.Unmarshal(item.Offers, &one); err != nil {
			return 0, false
		}
		offers = []jsonLDOffer{one}
	}
	for _, o := range offers {
		for _, raw := range []json.RawMessage{o.Price, o.LowPrice} {
			if v, ok := jsonNumber(raw); ok && v > 0 {
				return v, true
			}
		}
	}
	return 0, false
}

// hasType accepts "@type" as a string or a list of strings.
func hasType(raw json.RawMessage, want string) bool {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return one == want
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, t := range many {
			if t == want {
				return true
			}
		}
	}
	return false
}

// jsonNumber parses schema.org prices, which use a dot decimal separator
// and may be encoded as a string.
func jsonNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
