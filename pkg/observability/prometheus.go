package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "stackrank"

// PrometheusHooks records fetch, cache, and HTTP events as Prometheus metrics.
type PrometheusHooks struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	cacheSets     *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpErrors    *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewPrometheusHooks creates the collectors and registers them with reg.
func NewPrometheusHooks(reg prometheus.Registerer) *PrometheusHooks {
	h := &PrometheusHooks{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "fetch",
			Name:      "total",
			Help:      "Total number of package fetches by layer, ecosystem and outcome.",
		}, []string{"layer", "ecosystem", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Duration of package fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"layer", "ecosystem"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits.",
		}, []string{"key_type", "stale"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses.",
		}, []string{"key_type"}),
		cacheSets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "sets_total",
			Help:      "Total number of cache writes.",
		}, []string{"key_type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "Total number of upstream HTTP responses by host and status.",
		}, []string{"host", "status"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Total number of upstream HTTP transport errors.",
		}, []string{"host"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Duration of upstream HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
	}
	if reg != nil {
		reg.MustRegister(h.fetches, h.fetchDuration, h.cacheHits, h.cacheMisses,
			h.cacheSets, h.httpRequests, h.httpErrors, h.httpDuration)
	}
	return h
}

func (h *PrometheusHooks) OnFetchStart(context.Context, string, string, string) {}

func (h *PrometheusHooks) OnFetchComplete(_ context.Context, layer, ecosystem, _ string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.fetches.WithLabelValues(layer, ecosystem, outcome).Inc()
	h.fetchDuration.WithLabelValues(layer, ecosystem).Observe(d.Seconds())
}

func (h *PrometheusHooks) OnCacheHit(_ context.Context, keyType string, stale bool) {
	h.cacheHits.WithLabelValues(keyType, strconv.FormatBool(stale)).Inc()
}

func (h *PrometheusHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.cacheMisses.WithLabelValues(keyType).Inc()
}

func (h *PrometheusHooks) OnCacheSet(_ context.Context, keyType string, _ int) {
	h.cacheSets.WithLabelValues(keyType).Inc()
}

func (h *PrometheusHooks) OnRequest(context.Context, string, string, string) {}

func (h *PrometheusHooks) OnResponse(_ context.Context, _, host, _ string, code int, d time.Duration) {
	h.httpRequests.WithLabelValues(host, strconv.Itoa(code)).Inc()
	h.httpDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (h *PrometheusHooks) OnError(_ context.Context, _, host, _ string, _ error) {
	h.httpErrors.WithLabelValues(host).Inc()
}

var (
	_ FetchHooks = (*PrometheusHooks)(nil)
	_ CacheHooks = (*PrometheusHooks)(nil)
	_ HTTPHooks  = (*PrometheusHooks)(nil)
)
