package monitor

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
	OutcomeReplayed = "replayed"
)

// Metrics holds every collector the service exports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// business
	checkoutTotal      *prometheus.CounterVec
	checkoutDuration   prometheus.Histogram
	stockReservedTotal *prometheus.CounterVec
	productStock       *prometheus.GaugeVec
	lowStockTotal      *prometheus.CounterVec
	otpIssuedTotal     *prometheus.CounterVec
	otpVerifyTotal     *prometheus.CounterVec
	otpThrottledTotal  prometheus.Counter
	descriptionTotal   *prometheus.CounterVec

	// http
	httpRequestTotal    *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// queue
	queueMessageTotal *prometheus.CounterVec

	// system
	goroutineCount prometheus.Gauge
	memoryUsage    prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		checkoutTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by outcome",
		}, []string{"outcome"}),
		checkoutDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Duration of checkout transactions",
			Buckets:   prometheus.DefBuckets,
		}),
		stockReservedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_reserved_units_total",
			Help:      "Units removed from stock by committed checkouts",
		}, []string{"product_id"}),
		productStock: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "product_stock",
			Help:      "Last observed stock count per product",
		}, []string{"product_id"}),
		lowStockTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_events_total",
			Help:      "Checkouts that left a product at or below the low stock threshold",
		}, []string{"product_id"}),
		otpIssuedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "One-time codes issued by delivery channel",
		}, []string{"channel"}),
		otpVerifyTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verify_total",
			Help:      "One-time code verifications by result",
		}, []string{"result"}),
		otpThrottledTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_throttled_total",
			Help:      "Code requests rejected by the issue limiter",
		}),
		descriptionTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "description_requests_total",
			Help:      "Description generation requests by result",
		}, []string{"result"}),

		httpRequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		queueMessageTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_messages_total",
			Help:      "Queue messages by topic and operation",
		}, []string{"topic", "operation", "status"}),

		goroutineCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Number of goroutines",
		}),
		memoryUsage: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Bytes of allocated heap objects",
		}),
	}
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCheckout records one checkout outcome
func (m *Metrics) RecordCheckout(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.checkoutTotal.WithLabelValues(outcome).Inc()
	m.checkoutDuration.Observe(d.Seconds())
}

// RecordStockReserved records units taken from a product by a checkout
func (m *Metrics) RecordStockReserved(productID string, units int) {
	if m == nil {
		return
	}
	m.stockReservedTotal.WithLabelValues(productID).Add(float64(units))
}

// SetProductStock records the latest stock figure of a product
func (m *Metrics) SetProductStock(productID string, stock int) {
	if m == nil {
		return
	}
	m.productStock.WithLabelValues(productID).Set(float64(stock))
}

// RecordLowStock counts a low stock event
func (m *Metrics) RecordLowStock(productID string) {
	if m == nil {
		return
	}
	m.lowStockTotal.WithLabelValues(productID).Inc()
}

// RecordOTPIssued counts an issued code
func (m *Metrics) RecordOTPIssued(channel string) {
	if m == nil {
		return
	}
	m.otpIssuedTotal.WithLabelValues(channel).Inc()
}

// RecordOTPVerify counts a verification attempt
func (m *Metrics) RecordOTPVerify(ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "accepted"
	}
	m.otpVerifyTotal.WithLabelValues(result).Inc()
}

// RecordOTPThrottled counts a throttled code request
func (m *Metrics) RecordOTPThrottled() {
	if m == nil {
		return
	}
	m.otpThrottledTotal.Inc()
}

// RecordDescription counts a description request by result
func (m *Metrics) RecordDescription(result string) {
	if m == nil {
		return
	}
	m.descriptionTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records one served request
func (m *Metrics) RecordHTTPRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordQueueMessage records a queue operation
func (m *Metrics) RecordQueueMessage(topic, operation, status string) {
	if m == nil {
		return
	}
	m.queueMessageTotal.WithLabelValues(topic, operation, status).Inc()
}

// UpdateSystemMetrics samples runtime statistics
func (m *Metrics) UpdateSystemMetrics() {
	if m == nil {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.memoryUsage.Set(float64(ms.Alloc))
	m.goroutineCount.Set(float64(runtime.NumGoroutine()))
}

// StartSystemMetricsCollection samples runtime statistics every interval
// until ctx is done
func (m *Metrics) StartSystemMetricsCollection(ctx context.Context, interval time.Duration) {
	if m == nil {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.UpdateSystemMetrics()
			}
		}
	}()
}
