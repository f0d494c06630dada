package stealth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

type robotsEntry struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

// RobotsChecker caches and checks robots.txt rules per store host.
type RobotsChecker struct {
	client   *http.Client
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]robotsEntry
}

// NewRobotsChecker creates a robots.txt checker. A nil checker allows
// everything.
func NewRobotsChecker(client *http.Client) *RobotsChecker {
	return &RobotsChecker{
		client:   client,
		cacheTTL: 6 * time.Hour,
		cache:    make(map[string]robotsEntry),
	}
}

// IsAllowed checks if the given URL is allowed by robots.txt. Hosts whose
// robots.txt cannot be fetched or parsed are allowed.
func (r *RobotsChecker) IsAllowed(ctx context.Context, userAgent string, u *url.URL) bool {
	if r == nil {
		return true
	}
	data, err := r.rules(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return true
	}
	return data.TestAgent(u.EscapedPath(), userAgent)
}

func (r *RobotsChecker) rules(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	e, ok := r.cache[origin]
	r.mu.Unlock()
	if ok && time.Now().Before(e.expires) {
		return e.data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.cache[origin] = robotsEntry{data: data, expires: time.Now().Add(r.cacheTTL)}
	r.mu.Unlock()
	return data, nil
}
