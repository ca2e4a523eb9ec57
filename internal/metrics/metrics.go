// Package metrics provides Prometheus-based metrics collection for the
// scanner. It exposes a small generic Counter/Gauge/Histogram surface (so
// call sites don't need to import prometheus directly) while registering
// everything against a real prometheus.Registry for scraping.
package metrics

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "mcscan"

// Labels represents key-value pairs attached to a metric observation.
type Labels map[string]string

// Metric is a point-in-time snapshot of a single metric series.
type Metric struct {
	Name   string
	Type   string
	Value  float64
	Labels Labels
}

// MetricsRegistry defines the interface for metrics collection, so
// components can be tested against a fake without pulling in Prometheus.
type MetricsRegistry interface {
	SetEnabled(enabled bool)
	IsEnabled() bool
	Counter(name string, labels Labels)
	Gauge(name string, value float64, labels Labels)
	Histogram(name string, value float64, labels Labels)
	GetMetrics() map[string]*Metric
	Reset()
}

var _ MetricsRegistry = (*Registry)(nil)

// Registry is a Prometheus-backed MetricsRegistry. Vectors are created
// lazily on first use, keyed by metric name plus the sorted label keys of
// that observation, since a CounterVec/GaugeVec/HistogramVec must be
// registered with a fixed set of label names.
type Registry struct {
	mu      sync.RWMutex
	enabled bool
	prom    *prometheus.Registry

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec

	snapshot map[string]*Metric
}

// NewRegistry creates a Registry with the Go runtime collectors attached.
func NewRegistry() *Registry {
	prom := prometheus.NewRegistry()
	prom.MustRegister(collectors.NewGoCollector())
	prom.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Registry{
		enabled:    true,
		prom:       prom,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		snapshot:   make(map[string]*Metric),
	}
}

// PrometheusRegistry exposes the underlying registry for an HTTP /metrics handler.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prom
}

// SetEnabled enables or disables metrics collection.
func (r *Registry) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// IsEnabled returns whether metrics collection is enabled.
func (r *Registry) IsEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

func labelKeys(labels Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func vecKey(name string, keys []string) string {
	return name + "|" + strings.Join(keys, ",")
}

func labelValues(labels Labels, keys []string) []string {
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = labels[k]
	}
	return vals
}

func snapshotKey(name string, labels Labels) string {
	keys := labelKeys(labels)
	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString(",")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}
	return b.String()
}

// Counter increments a counter metric by 1.
func (r *Registry) Counter(name string, labels Labels) {
	if !r.IsEnabled() {
		return
	}
	keys := labelKeys(labels)

	r.mu.Lock()
	vec, ok := r.counters[vecKey(name, keys)]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
		}, keys)
		r.prom.MustRegister(vec)
		r.counters[vecKey(name, keys)] = vec
	}
	r.mu.Unlock()

	vec.WithLabelValues(labelValues(labels, keys)...).Inc()

	r.mu.Lock()
	sk := snapshotKey(name, labels)
	if m, ok := r.snapshot[sk]; ok {
		m.Value++
	} else {
		r.snapshot[sk] = &Metric{Name: name, Type: "counter", Value: 1, Labels: labels}
	}
	r.mu.Unlock()
}

// Gauge sets a gauge metric to value.
func (r *Registry) Gauge(name string, value float64, labels Labels) {
	if !r.IsEnabled() {
		return
	}
	keys := labelKeys(labels)

	r.mu.Lock()
	vec, ok := r.gauges[vecKey(name, keys)]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
		}, keys)
		r.prom.MustRegister(vec)
		r.gauges[vecKey(name, keys)] = vec
	}
	r.mu.Unlock()

	vec.WithLabelValues(labelValues(labels, keys)...).Set(value)

	r.mu.Lock()
	r.snapshot[snapshotKey(name, labels)] = &Metric{Name: name, Type: "gauge", Value: value, Labels: labels}
	r.mu.Unlock()
}

// Histogram records an observation in a histogram metric.
func (r *Registry) Histogram(name string, value float64, labels Labels) {
	if !r.IsEnabled() {
		return
	}
	keys := labelKeys(labels)

	r.mu.Lock()
	vec, ok := r.histograms[vecKey(name, keys)]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Buckets:   prometheus.DefBuckets,
		}, keys)
		r.prom.MustRegister(vec)
		r.histograms[vecKey(name, keys)] = vec
	}
	r.mu.Unlock()

	vec.WithLabelValues(labelValues(labels, keys)...).Observe(value)

	r.mu.Lock()
	r.snapshot[snapshotKey(name, labels)] = &Metric{Name: name, Type: "histogram", Value: value, Labels: labels}
	r.mu.Unlock()
}

// GetMetrics returns a snapshot of the most recent value observed per series.
func (r *Registry) GetMetrics() map[string]*Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Metric, len(r.snapshot))
	for k, v := range r.snapshot {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Reset clears the in-memory snapshot. The underlying Prometheus vectors are
// left registered, matching Prometheus' own "counters never go backwards"
// semantics; only the convenience snapshot used by GetMetrics is cleared.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = make(map[string]*Metric)
}

// Timer measures a duration and records it as a histogram observation in
// seconds when Stop is called.
type Timer struct {
	registry *Registry
	name     string
	labels   Labels
	start    time.Time
}

// NewTimer starts a timer against the default global registry.
func NewTimer(name string, labels Labels) *Timer {
	return &Timer{registry: defaultRegistry, name: name, labels: labels, start: time.Now()}
}

// Stop records the elapsed duration and returns it.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	t.registry.Histogram(t.name, d.Seconds(), t.labels)
	return d
}

// StartPeriodicUpdates periodically refreshes process-level gauges
// (goroutine count, RSS estimate) until ctx is cancelled.
func (r *Registry) StartPeriodicUpdates(ctx context.Context, interval time.Duration, sampler func() (rssBytes uint64, goroutines int)) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rss, goroutines := sampler()
				r.Gauge("process_rss_bytes", float64(rss), nil)
				r.Gauge("process_goroutines", float64(goroutines), nil)
			}
		}
	}()
}

var defaultRegistry = NewRegistry()

// GetGlobalRegistry returns the process-wide default registry.
func GetGlobalRegistry() *Registry {
	return defaultRegistry
}

// SetGlobalRegistry replaces the process-wide default registry (used by tests).
func SetGlobalRegistry(r *Registry) {
	defaultRegistry = r
}

// Counter increments a counter on the default global registry.
func Counter(name string, labels Labels) {
	defaultRegistry.Counter(name, labels)
}

// Gauge sets a gauge on the default global registry.
func Gauge(name string, value float64, labels Labels) {
	defaultRegistry.Gauge(name, value, labels)
}

// Histogram records an observation on the default global registry.
func Histogram(name string, value float64, labels Labels) {
	defaultRegistry.Histogram(name, value, labels)
}

// FormatCount is a small helper used by CLI summaries to render counts.
func FormatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}
