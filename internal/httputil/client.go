package httputil

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"github.com/lukman83/pricewatch/internal/stealth"
)

const (
	DefaultRetries = 3
	DefaultTimeout = 15 * time.Second
	DefaultBackoff = 2 * time.Second

	maxRedirects = 5
	maxBodyBytes = 16 << 20
)

// NewHTTPClient creates an HTTP client with sensible defaults.
// An optional RoundTripper (e.g. StealthTransport) can be injected.
// Per-attempt deadlines come from the request context, so the client itself
// has no global timeout.
func NewHTTPClient(transport http.RoundTripper) *http.Client {
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// FetchError is returned when every attempt to fetch a page failed.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: giving up after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is an attempt failure caused by a non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// FetchOptions tunes a single Fetch call.
type FetchOptions struct {
	// Referer sends navigation-context headers as if the page was opened
	// from the store's home page.
	Referer bool
	// Timeout overrides the per-attempt timeout when positive.
	Timeout time.Duration
	// Backoff overrides the base inter-attempt delay when positive.
	Backoff time.Duration
}

// Fetcher downloads pages with retry and linear-growth backoff.
// It holds no mutable state and is safe for concurrent use.
//
// Limiter and Delay pace every attempt. They are waited on under the
// caller's context before the per-attempt timeout starts, so time spent
// queued for a token is never charged to the request.
type Fetcher struct {
	Client  *http.Client
	Retries int
	Timeout time.Duration
	Backoff time.Duration
	Limiter *rate.Limiter
	Delay   *stealth.HumanDelay

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher returns a Fetcher using client and the default retry policy.
func NewFetcher(client *http.Client) *Fetcher {
	return &Fetcher{
		Client:  client,
		Retries: DefaultRetries,
		Timeout: DefaultTimeout,
		Backoff: DefaultBackoff,
	}
}

// Fetch performs a GET and returns the decoded body. Attempt i (1-based)
// that fails is followed by a delay of Backoff×i plus up to Backoff/2 of
// jitter. After the last attempt the last error is returned in a
// *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts FetchOptions) ([]byte, error) {
	retries := f.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	timeout := f.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	backoff := f.Backoff
	if opts.Backoff > 0 {
		backoff = opts.Backoff
	}
	sleep := f.sleep
	if sleep == nil {
		sleep = stealth.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if err := f.pace(ctx); err != nil {
			return nil, &FetchError{URL: rawURL, Attempts: attempt, Err: errors.Join(lastErr, err)}
		}
		body, err := f.attempt(ctx, rawURL, opts, timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, &FetchError{URL: rawURL, Attempts: attempt, Err: lastErr}
		}
		if attempt == retries {
			break
		}

		wait := backoff*time.Duration(attempt) + stealth.RandomBetween(0, backoff/2)
		if err := sleep(ctx, wait); err != nil {
			return nil, &FetchError{URL: rawURL, Attempts: attempt, Err: errors.Join(lastErr, err)}
		}
	}
	return nil, &FetchError{URL: rawURL, Attempts: retries, Err: lastErr}
}

func (f *Fetcher) pace(ctx context.Context) error {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	if f.Delay != nil {
		if err := f.Delay.Wait(ctx); err != nil {
			return fmt.Errorf("delay: %w", err)
		}
	}
	return nil
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string, opts FetchOptions, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range BrowserHeaders() {
		req.Header[k] = v
	}
	if opts.Referer {
		for k, v := range NavigationHeaders(req.URL) {
			req.Header[k] = v
		}
	}

	client := f.Client
	if client == nil {
		client = NewHTTPClient(nil)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	return ReadBody(resp)
}

// ReadBody reads and decompresses an HTTP response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	default:
		reader = resp.Body
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
