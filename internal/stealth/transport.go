package stealth

import (
	"fmt"
	"net/http"
)

// StealthTransport is an http.RoundTripper that applies the stealth pipeline:
// Fingerprint → RobotsCheck → Proxy → Send
//
// Every component is optional except Fingerprint. Pacing (rate limit and
// human delay) is done by the caller before the request deadline starts.
type StealthTransport struct {
	Base        http.RoundTripper
	Robots      *RobotsChecker
	Fingerprint *FingerprintPool
	Proxy       *ProxyRotator
}

// ErrDisallowed is returned when robots.txt forbids the request.
type ErrDisallowed struct {
	URL string
}

func (e *ErrDisallowed) Error() string {
	return fmt.Sprintf("blocked by robots.txt: %s", e.URL)
}

func (t *StealthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())

	// 1. Apply fingerprint (UA + headers); explicit request headers win
	fp := t.Fingerprint.Random()
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", fp.UserAgent)
	}
	for key, vals := range fp.Headers {
		if req.Header.Get(key) == "" {
			for _, v := range vals {
				req.Header.Add(key, v)
			}
		}
	}

	// 2. Check robots.txt
	if !t.Robots.IsAllowed(req.Context(), req.Header.Get("User-Agent"), req.URL) {
		return nil, &ErrDisallowed{URL: req.URL.String()}
	}

	// 3. Route through proxy if configured
	transport := t.Base
	if t.Proxy != nil {
		transport = t.Proxy.Next().Transport()
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	return transport.RoundTrip(req)
}
