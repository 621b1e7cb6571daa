// Package metrics exposes Prometheus counters for token issuance, logins and
// the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the engine, the services and the HTTP layer report to.
type Recorder interface {
	TokenIssued(kind string)
	TokenRejected(kind string, reason string)
	LoginCompleted(provider string, outcome string)
	RefreshCompleted(outcome string)
	HTTPRequest(method string, route string, status int, d time.Duration)
	RateLimited(route string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	tokensIssued   *prometheus.CounterVec
	tokensRejected *prometheus.CounterVec
	logins         *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	rateLimited    *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiwes_tokens_issued_total",
			Help: "Tokens minted, by kind.",
		}, []string{"kind"}),
		tokensRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiwes_tokens_rejected_total",
			Help: "Tokens that failed validation, by kind and reason.",
		}, []string{"kind", "reason"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiwes_logins_total",
			Help: "Social logins, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiwes_token_refreshes_total",
			Help: "Refresh attempts, by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiwes_http_requests_total",
			Help: "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kiwes_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiwes_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by route.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.tokensIssued,
		c.tokensRejected,
		c.logins,
		c.refreshes,
		c.httpRequests,
		c.httpLatency,
		c.rateLimited,
	)

	return c
}

func (c *Collector) TokenIssued(kind string) {
	c.tokensIssued.WithLabelValues(kind).Inc()
}

func (c *Collector) TokenRejected(kind string, reason string) {
	c.tokensRejected.WithLabelValues(kind, reason).Inc()
}

func (c *Collector) LoginCompleted(provider string, outcome string) {
	c.logins.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) RefreshCompleted(outcome string) {
	c.refreshes.WithLabelValues(outcome).Inc()
}

func (c *Collector) HTTPRequest(method string, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

func (c *Collector) RateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// Handler serves the gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop discards everything. Used where metrics are not wired, mostly tests.
type Noop struct{}

func (Noop) TokenIssued(string)                             {}
func (Noop) TokenRejected(string, string)                   {}
func (Noop) LoginCompleted(string, string)                  {}
func (Noop) RefreshCompleted(string)                        {}
func (Noop) HTTPRequest(string, string, int, time.Duration) {}
func (Noop) RateLimited(string)                             {}
