package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds the import pipeline metrics on a private prometheus registry
type Registry struct {
	reg *prometheus.Registry

	PageRequests    *prometheus.CounterVec // by status class: 2xx, 4xx, 5xx, error
	PageDuration    prometheus.Histogram
	ProductsFetched prometheus.Counter
	SyncOutcomes    *prometheus.CounterVec // by outcome: created, updated, errored
	Brands          *prometheus.CounterVec // by result: processed, skipped, partial
	RunDuration     prometheus.Gauge
	LastRunSuccess  prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	pageRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_page_requests_total",
		Help: "Storefront page requests by HTTP status class.",
	}, []string{"status"})
	pageDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_sync_page_request_duration_seconds",
		Help:    "Latency of storefront page requests.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
	productsFetched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_sync_products_fetched_total",
		Help: "External product records received from storefronts.",
	})
	syncOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_products_total",
		Help: "Synchronized products by outcome.",
	}, []string{"outcome"})
	brands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_brands_total",
		Help: "Brands handled by the orchestrator by result.",
	}, []string{"result"})
	runDuration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_sync_last_run_duration_seconds",
		Help: "Wall time of the last completed run.",
	})
	lastRunSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_sync_last_run_success_timestamp_seconds",
		Help: "Unix time of the last run that reached the summary.",
	})

	r.MustRegister(pageRequests, pageDuration, productsFetched, syncOutcomes, brands, runDuration, lastRunSuccess)
	return &Registry{
		reg:             r,
		PageRequests:    pageRequests,
		PageDuration:    pageDuration,
		ProductsFetched: productsFetched,
		SyncOutcomes:    syncOutcomes,
		Brands:          brands,
		RunDuration:     runDuration,
		LastRunSuccess:  lastRunSuccess,
	}
}

// ObservePage records one storefront page request; statusCode 0 means the request itself failed
func (r *Registry) ObservePage(statusCode int, d time.Duration) {
	if r == nil {
		return
	}
	r.PageRequests.WithLabelValues(classifyStatus(statusCode)).Inc()
	r.PageDuration.Observe(d.Seconds())
}

// AddFetched counts product records received from a storefront
func (r *Registry) AddFetched(n int) {
	if r == nil {
		return
	}
	r.ProductsFetched.Add(float64(n))
}

// ObserveBrand counts one brand by its result: processed, partial or skipped
func (r *Registry) ObserveBrand(result string) {
	if r == nil {
		return
	}
	r.Brands.WithLabelValues(result).Inc()
}

// ObserveOutcome counts one product sync outcome
func (r *Registry) ObserveOutcome(outcome string) {
	if r == nil {
		return
	}
	r.SyncOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveRun records the end of a run
func (r *Registry) ObserveRun(d time.Duration, finished time.Time) {
	if r == nil {
		return
	}
	r.RunDuration.Set(d.Seconds())
	r.LastRunSuccess.Set(float64(finished.Unix()))
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// Push sends the current values to a Pushgateway, for batch runs that exit before a scrape
func (r *Registry) Push(url, job string) error {
	if err := push.New(url, job).Gatherer(r.reg).Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode == 0:
		return "error"
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}
