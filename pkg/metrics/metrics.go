package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// CheckoutMetrics counts engine outcomes. A nil *CheckoutMetrics is a no-op.
type CheckoutMetrics struct {
	Checkouts    *prometheus.CounterVec
	TaxFallbacks *prometheus.CounterVec
	Merges       *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer, service string) *CheckoutMetrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	taxFallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "tax_fallbacks_total",
		Help:      "Tax recomputations that degraded to zero tax because the tax service failed.",
	}, []string{"reason"})
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "cart_merges_total",
		Help:      "Identity merges by resolution.",
	}, []string{"resolution"})

	reg.MustRegister(checkouts, taxFallbacks, merges)
	return &CheckoutMetrics{Checkouts: checkouts, TaxFallbacks: taxFallbacks, Merges: merges}
}

func (m *CheckoutMetrics) Checkout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *CheckoutMetrics) TaxFallback(reason string) {
	if m == nil {
		return
	}
	m.TaxFallbacks.WithLabelValues(reason).Inc()
}

func (m *CheckoutMetrics) Merge(resolution string) {
	if m == nil {
		return
	}
	m.Merges.WithLabelValues(resolution).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
