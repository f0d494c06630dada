package httputil

import (
	"net/http"
	"net/url"
)

// BrowserHeaders returns the headers every page request carries. The
// User-Agent and engine-specific headers are added by the stealth transport.
func BrowserHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

// NavigationHeaders returns headers for stores that reject requests without
// a navigation context.
func NavigationHeaders(u *url.URL) http.Header {
	h := http.Header{}
	h.Set("Referer", u.Scheme+"://"+u.Host)
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Cache-Control", "max-age=0")
	return h
}
