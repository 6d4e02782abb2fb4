// Package metrics exposes Prometheus collectors for the live pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crisiswatch"

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	builds       prometheus.Counter
	buildDur     prometheus.Histogram
	stageResults *prometheus.CounterVec
	feedFetches  *prometheus.CounterVec
	feedDur      *prometheus.HistogramVec
	rerank       *prometheus.CounterVec
	items        *prometheus.GaugeVec
	requests     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		builds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Live documents built",
		}),
		buildDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Time spent building a live document",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 45},
		}),
		stageResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage outcomes by status",
		}, []string{"stage", "status"}),
		feedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Feed fetches by source and result",
		}, []string{"source", "result"}),
		feedDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Per-source feed fetch latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		rerank: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_outcomes_total",
			Help:      "Reranker outcome tags by list",
		}, []string{"list", "result"}),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "document_items",
			Help:      "Items in the last built document",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Served requests by route and cache result",
		}, []string{"route", "cache"}),
	}
	if reg != nil {
		reg.MustRegister(m.builds, m.buildDur, m.stageResults, m.feedFetches, m.feedDur, m.rerank, m.items, m.requests)
	}
	return m
}

// ObserveBuild records one finished build.
func (m *Metrics) ObserveBuild(d time.Duration) {
	if m == nil {
		return
	}
	m.builds.Inc()
	m.buildDur.Observe(d.Seconds())
}

// ObserveStage counts a stage outcome ("ok", "degraded", "empty").
func (m *Metrics) ObserveStage(stage, status string) {
	if m == nil {
		return
	}
	m.stageResults.WithLabelValues(stage, status).Inc()
}

// ObserveFeed records one source fetch.
func (m *Metrics) ObserveFeed(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.feedFetches.WithLabelValues(source, result).Inc()
	m.feedDur.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveRerank counts a reranker outcome tag for list ("social", "markets").
func (m *Metrics) ObserveRerank(list, result string) {
	if m == nil {
		return
	}
	m.rerank.WithLabelValues(list, result).Inc()
}

// SetItems records a document's list sizes.
func (m *Metrics) SetItems(kind string, n int) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(kind).Set(float64(n))
}

// ObserveRequest counts a served request.
func (m *Metrics) ObserveRequest(route, cache string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, cache).Inc()
}
