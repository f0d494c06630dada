package sites

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukman83/pricewatch/internal/httputil"
	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/platform"
	"github.com/lukman83/pricewatch/internal/price"
)

// ErrPriceNotFound is the diagnostic for a reachable page with no price.
var ErrPriceNotFound = errors.New("price not found on page, check the product link")

// Fetcher downloads a product page. *httputil.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts httputil.FetchOptions) ([]byte, error)
}

type pageStrategy struct {
	profile Profile
	fetcher Fetcher
}

// New returns the strategy for p.
func New(p Profile, f Fetcher) platform.Strategy {
	return &pageStrategy{profile: p, fetcher: f}
}

func (s *pageStrategy) Name() string { return s.profile.ID }

func (s *pageStrategy) Scrape(ctx context.Context, url string) (res platform.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] panic while scraping %s: %v", s.profile.ID, url, r)
			res = failure(models.FailureInternal, fmt.Sprintf("internal error: %v", r))
		}
	}()

	platform.ReportProgress(ctx, fmt.Sprintf("Fetching %s...", s.profile.Name))
	body, err := s.fetcher.Fetch(ctx, url, s.fetchOptions())
	if err != nil {
		log.Printf("[%s] fetch %s: %v", s.profile.ID, url, err)
		return failure(models.FailureFetch, err.Error())
	}

	res, err = s.parse(body)
	if err != nil {
		return failure(models.FailureParse, err.Error())
	}
	if res.Price != nil {
		log.Printf("[%s] price found: %s (selector: %s)", s.profile.ID, price.FormatFloatBRL(*res.Price), res.Selector)
	}
	return res
}

func (s *pageStrategy) fetchOptions() httputil.FetchOptions {
	if !s.profile.Navigation {
		return httputil.FetchOptions{}
	}
	return httputil.FetchOptions{
		Referer: true,
		Timeout: navigationTimeout,
		Backoff: navigationBackoff,
	}
}

// parse runs the extraction algorithm over an already fetched page.
func (s *pageStrategy) parse(body []byte) (platform.Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return platform.Result{}, fmt.Errorf("parse HTML: %w", err)
	}
	p := s.profile

	if len(p.Noise) > 0 {
		doc.Find(strings.Join(p.Noise, ", ")).Remove()
	}

	var (
		value    float64
		selector string
		found    bool
	)
	if p.MainContent != "" {
		if main := doc.Find(p.MainContent); main.Length() > 0 {
			value, selector, found = locate(main, p.PriceSelectors)
		}
	}
	if !found {
		value, selector, found = locate(doc.Selection, p.PriceSelectors)
	}

	text := visibleText(doc)
	if !found && p.TextFallback != nil {
		value, found = scanText(text, p.TextFallback, p.FallbackFloor)
		if found {
			selector = "text:" + p.TextFallback.String()
		}
	}
	if !found {
		value, found = structuredPrice(doc)
		if found {
			selector = "json-ld"
		}
	}

	if !found {
		return platform.Result{
			Available: false,
			Error:     ErrPriceNotFound.Error(),
			Failure:   models.FailureExtraction,
		}, nil
	}
	return platform.Result{
		Price:     &value,
		Available: !s.unavailable(doc, text),
		Selector:  selector,
	}, nil
}

// locate returns the price from the first selector whose first match
// parses to a positive value.
func locate(root *goquery.Selection, selectors []string) (float64, string, bool) {
	for _, sel := range selectors {
		el := root.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(el.Text())
		if text == "" {
			continue
		}
		if v, ok := price.Extract(text); ok && v > 0 {
			return v, sel, true
		}
	}
	return 0, "", false
}

func scanText(text string, re *regexp.Regexp, floor float64) (float64, bool) {
	for _, m := range re.FindAllString(text, -1) {
		if v, ok := price.Extract(m); ok && v > floor {
			return v, true
		}
	}
	return 0, false
}

func (s *pageStrategy) unavailable(doc *goquery.Document, text string) bool {
	p := s.profile
	if p.FoldCase {
		text = strings.ToLower(text)
	}
	for _, phrase := range p.UnavailablePhrases {
		if p.FoldCase {
			phrase = strings.ToLower(phrase)
		}
		if strings.Contains(text, phrase) {
			return true
		}
	}
	for _, m := range p.UnavailableMarkers {
		matches := doc.Find(m.Selector)
		if matches.Length() == 0 {
			continue
		}
		if m.Text == "" || strings.Contains(matches.Text(), m.Text) {
			return true
		}
	}
	return false
}

func failure(kind models.FailureKind, msg string) platform.Result {
	return platform.Result{Available: false, Error: msg, Failure: kind}
}
