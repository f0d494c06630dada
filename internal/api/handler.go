package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/monitor"
)

type scrapeResponse struct {
	Success   bool               `json:"success"`
	CycleID   string             `json:"cycleId"`
	Prices    []models.Reading   `json:"prices"`
	Changed   int                `json:"changed"`
	Alerts    int                `json:"alerts"`
	LastCheck time.Time          `json:"lastCheck"`
	History   map[string][]Point `json:"history"`
	Timestamp time.Time          `json:"timestamp"`
	Duration  string             `json:"duration"`
	Errors    []string           `json:"errors,omitempty"`
}

// Register mounts the API routes on mux. When apiKey is set, triggering a
// scrape requires it as a Bearer token; reads stay open.
func (s *Service) Register(mux *http.ServeMux, apiKey string) {
	mux.HandleFunc("GET /api/prices", s.handlePrices)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	var scrape http.Handler = http.HandlerFunc(s.handleScrape)
	if apiKey != "" {
		scrape = BearerAuth(apiKey, "api", scrape)
	}
	mux.Handle("GET /api/scrape", scrape)
	mux.Handle("POST /api/scrape", scrape)

	mux.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Service) handlePrices(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Snapshot(r.Context())
	if err != nil {
		log.Printf("[api] prices: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*Snapshot
	}{true, snap})
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	history, err := s.History(r.Context(), q.Get("productId"), q.Get("store"))
	if err != nil {
		log.Printf("[api] history: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": history})
}

func (s *Service) handleScrape(w http.ResponseWriter, r *http.Request) {
	log.Printf("[api] %s /api/scrape from %s", r.Method, r.RemoteAddr)

	// The cycle finishes even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	res, err := s.Scrape(ctx)
	if errors.Is(err, monitor.ErrCycleInProgress) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	history, err := s.History(ctx, "", "")
	if err != nil {
		log.Printf("[api] scrape history: %v", err)
		history = map[string][]Point{}
	}
	resp := scrapeResponse{
		Success:   true,
		CycleID:   res.ID,
		Prices:    res.Readings,
		Changed:   len(res.Changed),
		Alerts:    len(res.Alerts),
		LastCheck: res.FinishedAt,
		History:   history,
		Timestamp: s.now(),
		Duration:  res.Duration().Round(time.Millisecond).String(),
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	running := false
	if s.Monitor != nil {
		running = s.Monitor.Running()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": running})
}

// BearerAuth rejects requests without "Authorization: Bearer <apiKey>".
func BearerAuth(apiKey, realm string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="`+realm+`"`)
			http.Error(w, `{"error":"missing Authorization header"}`, http.StatusUnauthorized)
			return
		}
		token, found := strings.CutPrefix(auth, "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="`+realm+`", error="invalid_token"`)
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}
