package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lukman83/pricewatch/internal/models"
)

// Metrics are the monitor's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	CyclesTotal        *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	ReadingsTotal      *prometheus.CounterVec
	AlertsTotal        prometheus.Counter
	PersistenceErrors  prometheus.Counter
	NotificationErrors prometheus.Counter
	LastPrice          *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_cycles_total",
			Help: "Completed scrape cycles by result (ok or partial).",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricewatch_cycle_duration_seconds",
			Help:    "Wall time of a scrape cycle.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		ReadingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_readings_total",
			Help: "Readings by store and outcome (price or failure kind).",
		}, []string{"store", "outcome"}),
		AlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_alerts_total",
			Help: "Readings that reached their target price and changed.",
		}),
		PersistenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_persistence_errors_total",
			Help: "Store writes or reads that failed during a cycle.",
		}),
		NotificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_notification_errors_total",
			Help: "Notifications that could not be delivered.",
		}),
		LastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pricewatch_last_price_brl",
			Help: "Last price seen per product and store.",
		}, []string{"product", "store"}),
	}
	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.ReadingsTotal,
		m.AlertsTotal,
		m.PersistenceErrors,
		m.NotificationErrors,
		m.LastPrice,
	)
	return m
}

func (m *Metrics) ObserveReading(r models.Reading) {
	if m == nil {
		return
	}
	outcome := "price"
	if !r.HasPrice() {
		outcome = string(r.Failure)
		if outcome == "" {
			outcome = "unknown"
		}
	}
	m.ReadingsTotal.WithLabelValues(r.SiteID, outcome).Inc()
	if r.HasPrice() {
		m.LastPrice.WithLabelValues(r.ProductID, r.SiteID).Set(*r.Price)
	}
}

func (m *Metrics) ObserveCycle(ok bool, d time.Duration, alerts int) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "partial"
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(d.Seconds())
	m.AlertsTotal.Add(float64(alerts))
}

func (m *Metrics) PersistenceError() {
	if m != nil {
		m.PersistenceErrors.Inc()
	}
}

func (m *Metrics) NotificationError() {
	if m != nil {
		m.NotificationErrors.Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
