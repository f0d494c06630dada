package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/lukman83/pricewatch/config"
	"github.com/lukman83/pricewatch/internal/api"
	"github.com/lukman83/pricewatch/internal/history"
	"github.com/lukman83/pricewatch/internal/httputil"
	"github.com/lukman83/pricewatch/internal/monitor"
	"github.com/lukman83/pricewatch/internal/notify"
	"github.com/lukman83/pricewatch/internal/observability"
	"github.com/lukman83/pricewatch/internal/platform"
	"github.com/lukman83/pricewatch/internal/sites"
	"github.com/lukman83/pricewatch/internal/stealth"
	"github.com/lukman83/pricewatch/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "pricewatch",
	Short:        "pricewatch - Brazilian e-commerce price monitor",
	Long:         "Tracks product prices on Amazon, Casas Bahia, Magazine Luiza, Mercado Livre and Terabyte,\nkeeps a history of significant moves and alerts when a product drops to its target price.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRunE = initConfig
	rootCmd.PersistentFlags().String("catalog", "", "Path to the products catalog (YAML or JSON)")
	rootCmd.PersistentFlags().String("store", "", "Store backend: memory, postgres, redis")
	rootCmd.PersistentFlags().String("delay-profile", "", "Delay profile: none, aggressive, normal, cautious")
	rootCmd.PersistentFlags().Bool("respect-robots", false, "Respect robots.txt rules")
	rootCmd.PersistentFlags().String("proxy-file", "", "Path to proxy list file")
	rootCmd.PersistentFlags().Int("concurrency", 0, "Maximum simultaneous scrapes (0 = one per product/store pair)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg = config.DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}

	// Override from flags
	flags := cmd.Root().PersistentFlags()
	if v, _ := flags.GetString("catalog"); v != "" {
		cfg.CatalogPath = v
	}
	if v, _ := flags.GetString("store"); v != "" {
		cfg.StoreBackend = v
	}
	if v, _ := flags.GetString("delay-profile"); v != "" {
		cfg.DelayProfile = v
	}
	if flags.Changed("respect-robots") {
		cfg.RespectRobots, _ = flags.GetBool("respect-robots")
	}
	if v, _ := flags.GetString("proxy-file"); v != "" {
		cfg.ProxyFile = v
	}
	if flags.Changed("concurrency") {
		cfg.MaxConcurrent, _ = flags.GetInt("concurrency")
	}
	return cfg.Validate()
}

// buildHTTPClient creates the stealth-wrapped HTTP client from config.
func buildHTTPClient() (*http.Client, error) {
	fpPool := stealth.NewFingerprintPool()

	baseTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	var proxyRotator *stealth.ProxyRotator
	if cfg.ProxyFile != "" {
		providers, err := stealth.LoadProxyFile(cfg.ProxyFile)
		if err != nil {
			return nil, fmt.Errorf("load proxies: %w", err)
		}
		proxyRotator = stealth.NewProxyRotator(providers)
	}

	var robots *stealth.RobotsChecker
	if cfg.RespectRobots {
		robots = stealth.NewRobotsChecker(&http.Client{Timeout: 10 * time.Second})
	}

	transport := &stealth.StealthTransport{
		Base:        baseTransport,
		Robots:      robots,
		Fingerprint: fpPool,
		Proxy:       proxyRotator,
	}

	return httputil.NewHTTPClient(transport), nil
}

// buildRegistry registers a strategy for every supported store.
func buildRegistry() (*platform.Registry, error) {
	client, err := buildHTTPClient()
	if err != nil {
		return nil, err
	}
	fetcher := httputil.NewFetcher(client)
	fetcher.Retries = cfg.Retries
	fetcher.Timeout = cfg.Timeout
	fetcher.Backoff = cfg.Backoff
	// Shared by every store so the whole cycle stays under one budget.
	if cfg.RatePerSecond > 0 {
		fetcher.Limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst)
	}
	fetcher.Delay = stealth.NewHumanDelay(stealth.DelayProfile(cfg.DelayProfile))

	reg := platform.NewRegistry()
	sites.RegisterAll(reg, fetcher)
	return reg, nil
}

// buildNotifier returns every configured sink, each behind its own dedup
// filter so a failing sink retries without repeating the others.
func buildNotifier() notify.Notifier {
	var sinks notify.Multi
	if cfg.NtfyTopic != "" {
		sinks = append(sinks, notify.NewDedup(notify.NewNtfy(cfg.NtfyServer, cfg.NtfyTopic, nil)))
		log.Printf("[notify] ntfy enabled: %s/%s", cfg.NtfyServer, cfg.NtfyTopic)
	}
	if cfg.EmailHost != "" && len(cfg.EmailRecipients()) > 0 {
		sinks = append(sinks, notify.NewDedup(notify.NewEmail(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPass, cfg.EmailTo)))
		log.Printf("[notify] email enabled: %s via %s", cfg.EmailTo, cfg.EmailHost)
	}
	if len(sinks) == 0 {
		log.Println("[notify] no notifier configured, alerts are only logged")
	}
	return sinks
}

// app is the fully wired monitor.
type app struct {
	catalog  *config.Catalog
	registry *platform.Registry
	store    store.Store
	notifier notify.Notifier
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	monitor  *monitor.Monitor
	service  *api.Service
}

func newApp(ctx context.Context) (*app, error) {
	catalog, err := config.LoadCatalog(cfg.CatalogPath, sites.Catalog())
	if err != nil {
		return nil, err
	}

	reg, err := buildRegistry()
	if err != nil {
		return nil, err
	}
	if err := reg.Validate(catalog.Products, catalog.Sites); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend(), err)
	}
	log.Printf("[store] using %s backend, keeping %d history entries per pair", cfg.Backend(), cfg.HistoryLimit)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(promReg)

	a := &app{
		catalog:  catalog,
		registry: reg,
		store:    st,
		notifier: buildNotifier(),
		metrics:  metrics,
		gatherer: promReg,
	}
	a.monitor = monitor.New(monitor.Config{
		Registry:    reg,
		Store:       st,
		Notifier:    a.notifier,
		Detector:    history.NewDetector(cfg.Threshold),
		Metrics:     metrics,
		Products:    catalog.Products,
		Sites:       catalog.Sites,
		Concurrency: cfg.MaxConcurrent,
	})
	a.service = api.NewService(st, a.monitor, cfg.Interval)
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Printf("[store] close: %v", err)
	}
}
