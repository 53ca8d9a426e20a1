package monitor

import (
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the gateway's Prometheus registry plus an in-process latency
// window for the JSON stats endpoint.
type Metrics struct {
	registry *prometheus.Registry

	legs          *prometheus.CounterVec
	legLatency    *prometheus.HistogramVec
	calls         *prometheus.CounterVec
	callLatency   *prometheus.HistogramVec
	filterRefresh *prometheus.CounterVec
	filterSymbols *prometheus.GaugeVec
	streamUpdates *prometheus.CounterVec
	brackets      *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec

	// BracketLatency keeps the last submissions for percentile snapshots.
	BracketLatency *LatencyHistogram

	bracketsPlaced uint64
	errorsCount    uint64
	started        time.Time
}

// NewMetrics registers every collector on a private registry. busDropped,
// when set, is exported as a counter.
func NewMetrics(busDropped func() uint64) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		legs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_bracket_legs_total",
			Help: "Bracket legs by venue, role and final submission state.",
		}, []string{"venue", "role", "state"}),
		legLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_bracket_leg_seconds",
			Help:    "Time to acknowledge one leg, retries included.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"venue", "role"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_exchange_calls_total",
			Help: "Routed exchange calls by venue, operation and outcome.",
		}, []string{"venue", "op", "outcome"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_exchange_call_seconds",
			Help:    "Latency of single exchange calls.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"venue", "op"}),
		filterRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_filter_refresh_total",
			Help: "Filter cache refresh attempts by outcome.",
		}, []string{"venue", "outcome"}),
		filterSymbols: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_filter_symbols",
			Help: "Symbols in the current filter snapshot.",
		}, []string{"venue"}),
		streamUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_stream_order_updates_total",
			Help: "Order updates relayed from user data streams.",
		}, []string{"venue", "status"}),
		brackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_brackets_total",
			Help: "Bracket requests by venue and result.",
		}, []string{"venue", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_seconds",
			Help:    "HTTP handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		BracketLatency: NewLatencyHistogram(1000),
		started:        time.Now(),
	}

	reg.MustRegister(
		m.legs, m.legLatency, m.calls, m.callLatency,
		m.filterRefresh, m.filterSymbols, m.streamUpdates, m.brackets,
		m.httpRequests, m.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if busDropped != nil {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "gateway_event_bus_dropped_total",
			Help: "Events dropped because a bus subscriber was too slow.",
		}, func() float64 { return float64(busDropped()) }))
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveLeg records one leg submission.
func (m *Metrics) ObserveLeg(venue, role, state string, took time.Duration) {
	m.legs.WithLabelValues(venue, legRoleLabel(role), state).Inc()
	m.legLatency.WithLabelValues(venue, legRoleLabel(role)).Observe(took.Seconds())
}

// ObserveCall records one routed exchange call.
func (m *Metrics) ObserveCall(venue, op string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		atomic.AddUint64(&m.errorsCount, 1)
	}
	m.calls.WithLabelValues(venue, op, outcome).Inc()
	m.callLatency.WithLabelValues(venue, op).Observe(took.Seconds())
}

// ObserveRefresh records a filter refresh attempt.
func (m *Metrics) ObserveRefresh(venue string, symbols int, err error) {
	if err != nil {
		m.filterRefresh.WithLabelValues(venue, "error").Inc()
		return
	}
	m.filterRefresh.WithLabelValues(venue, "ok").Inc()
	m.filterSymbols.WithLabelValues(venue).Set(float64(symbols))
}

// ObserveStreamUpdate counts one relayed order update.
func (m *Metrics) ObserveStreamUpdate(venue, status string) {
	m.streamUpdates.WithLabelValues(venue, status).Inc()
}

// ObserveBracket records a Place call end to end. result is one of ok,
// partial, rejected, error.
func (m *Metrics) ObserveBracket(venue, result string, took time.Duration) {
	m.brackets.WithLabelValues(venue, result).Inc()
	if result == "ok" || result == "partial" {
		atomic.AddUint64(&m.bracketsPlaced, 1)
		m.BracketLatency.RecordDuration(took)
	}
}

// ObserveHTTP records one served request. route is the matched pattern, not
// the raw path.
func (m *Metrics) ObserveHTTP(route, method string, status int, took time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(took.Seconds())
}

// TP_1..TP_n collapse into one label to keep cardinality flat.
func legRoleLabel(role string) string {
	if len(role) > 3 && role[:3] == "TP_" {
		return "TP"
	}
	return role
}

// LatencyHistogram tracks latency samples over a sliding window.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99. Recomputed only when samples
// changed.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// Snapshot is the JSON view served by the stats endpoint.
type Snapshot struct {
	BracketLatency LatencyStats `json:"bracket_latency_ms"`
	BracketsPlaced uint64       `json:"brackets_placed"`
	ErrorsCount    uint64       `json:"exchange_errors"`
	GoroutineCount int          `json:"goroutine_count"`
	HeapAlloc      uint64       `json:"heap_alloc_bytes"`
	Uptime         string       `json:"uptime"`
	Timestamp      time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time snapshot.
func (m *Metrics) GetSnapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Snapshot{
		BracketLatency: m.BracketLatency.Stats(),
		BracketsPlaced: atomic.LoadUint64(&m.bracketsPlaced),
		ErrorsCount:    atomic.LoadUint64(&m.errorsCount),
		GoroutineCount: runtime.NumGoroutine(),
		HeapAlloc:      mem.HeapAlloc,
		Uptime:         time.Since(m.started).Round(time.Second).String(),
		Timestamp:      time.Now(),
	}
}
