package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lukman83/pricewatch/internal/observability"
	mcpserver "github.com/lukman83/pricewatch/mcp"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// routes mounts the read API, the scrape trigger, metrics and MCP.
func (a *app) routes(apiKey string) *http.ServeMux {
	mux := http.NewServeMux()
	a.service.Register(mux, apiKey)
	mux.Handle("GET /metrics", observability.Handler(a.gatherer))
	mcpserver.Mount(mux, mcpserver.NewServer(mcpserver.Deps{Service: a.service, Registry: a.registry}), apiKey)
	return mux
}

// listen serves h on addr until ctx is cancelled.
func listen(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // a manual scrape waits for the whole cycle
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[http] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Println("[http] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
