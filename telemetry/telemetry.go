// Package telemetry wraps github.com/prometheus/client_golang behind a
// small metric-kind interface, adapted from the teacher's own
// telemetry package (only its no-op half was retrieved — this file
// rebuilds the Prometheus-backed half it was missing, matching the
// shape `cmd/thor/node/metrics.go` already calls:
// `telemetry.LazyLoad`, `telemetry.CounterVec`, `telemetry.Counter`,
// `telemetry.Gauge`, `telemetry.HistogramVecWithHTTPBuckets`).
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HistogramMeter observes a single unlabeled distribution.
type HistogramMeter interface {
	Observe(int64)
}

// HistogramVecMeter observes a labeled distribution.
type HistogramVecMeter interface {
	ObserveWithLabels(int64, map[string]string)
}

// CountMeter accumulates a single unlabeled counter.
type CountMeter interface {
	Add(int64)
}

// CountVecMeter accumulates a labeled counter.
type CountVecMeter interface {
	AddWithLabel(int64, map[string]string)
}

// GaugeMeter sets a single unlabeled gauge.
type GaugeMeter interface {
	Gauge(int64)
}

// GaugeVecMeter sets a labeled gauge.
type GaugeVecMeter interface {
	GaugeWithLabel(int64, map[string]string)
}

// Telemetry is the registry BillService/ChainSync report through. Bill
// domain metric names (blocks appended, validation rejections by
// error code, sync ingestion latency) are registered lazily the first
// time each call site fires, via LazyLoad.
type Telemetry interface {
	GetOrCreateHistogramMeter(name string, buckets []int64) HistogramMeter
	GetOrCreateHistogramVecMeter(name string, labels []string, buckets []int64) HistogramVecMeter
	GetOrCreateCountMeter(name string) CountMeter
	GetOrCreateCountVecMeter(name string, labels []string) CountVecMeter
	GetOrCreateGaugeMeter(name string) GaugeMeter
	GetOrCreateGaugeVecMeter(name string, labels []string) GaugeVecMeter
	GetOrCreateHandler() http.Handler
}

var (
	mu      sync.Mutex
	service = defaultNoopTelemetry()
)

// Init switches the package-level service to a Prometheus-backed
// implementation registered under namespace. Call once at process
// start; before Init, every metric call is a no-op.
func Init(namespace string) {
	mu.Lock()
	defer mu.Unlock()
	service = newPromTelemetry(namespace)
}

// Handler exposes the metrics HTTP handler (nil until Init is called).
func Handler() http.Handler {
	mu.Lock()
	defer mu.Unlock()
	return service.GetOrCreateHandler()
}

// LazyLoad defers metric registration until the first call, so metric
// names declared as package-level vars never register unless the code
// path that uses them actually runs.
func LazyLoad[T any](create func() T) func() T {
	var (
		once  sync.Once
		value T
	)
	return func() T {
		once.Do(func() { value = create() })
		return value
	}
}

func Histogram(name string, buckets []int64) HistogramMeter {
	mu.Lock()
	defer mu.Unlock()
	return service.GetOrCreateHistogramMeter(name, buckets)
}

func HistogramVec(name string, labels []string, buckets []int64) HistogramVecMeter {
	mu.Lock()
	defer mu.Unlock()
	return service.GetOrCreateHistogramVecMeter(name, labels, buckets)
}

// httpBuckets are millisecond buckets suited to request/append
// latencies, mirroring the thor API's own default histogram buckets.
var httpBuckets = []int64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

func HistogramVecWithHTTPBuckets(name string, labels []string) HistogramVecMeter {
	return HistogramVec(name, labels, httpBuckets)
}

func Counter(name string) CountMeter {
	mu.Lock()
	defer mu.Unlock()
	return service.GetOrCreateCountMeter(name)
}

func CounterVec(name string, labels []string) CountVecMeter {
	mu.Lock()
	defer mu.Unlock()
	return service.GetOrCreateCountVecMeter(name, labels)
}

func Gauge(name string) GaugeMeter {
	mu.Lock()
	defer mu.Unlock()
	return service.GetOrCreateGaugeMeter(name)
}

func GaugeVec(name string, labels []string) GaugeVecMeter {
	mu.Lock()
	defer mu.Unlock()
	return service.GetOrCreateGaugeVecMeter(name, labels)
}

type promTelemetry struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func newPromTelemetry(namespace string) Telemetry {
	return &promTelemetry{
		namespace:  namespace,
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (p *promTelemetry) GetOrCreateCountMeter(name string) CountMeter {
	return p.countVec(name, nil)
}

func (p *promTelemetry) GetOrCreateCountVecMeter(name string, labels []string) CountVecMeter {
	return p.countVec(name, labels)
}

func (p *promTelemetry) countVec(name string, labels []string) *countVecMeter {
	p.mu.Lock()
	defer p.mu.Unlock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace, Name: name,
		}, labels)
		p.registry.MustRegister(vec)
		p.counters[name] = vec
	}
	return &countVecMeter{vec: vec}
}

func (p *promTelemetry) GetOrCreateGaugeMeter(name string) GaugeMeter {
	return p.gaugeVec(name, nil)
}

func (p *promTelemetry) GetOrCreateGaugeVecMeter(name string, labels []string) GaugeVecMeter {
	return p.gaugeVec(name, labels)
}

func (p *promTelemetry) gaugeVec(name string, labels []string) *gaugeVecMeter {
	p.mu.Lock()
	defer p.mu.Unlock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace, Name: name,
		}, labels)
		p.registry.MustRegister(vec)
		p.gauges[name] = vec
	}
	return &gaugeVecMeter{vec: vec}
}

func (p *promTelemetry) GetOrCreateHistogramMeter(name string, buckets []int64) HistogramMeter {
	return p.histogramVec(name, nil, buckets)
}

func (p *promTelemetry) GetOrCreateHistogramVecMeter(name string, labels []string, buckets []int64) HistogramVecMeter {
	return p.histogramVec(name, labels, buckets)
}

func (p *promTelemetry) histogramVec(name string, labels []string, buckets []int64) *histogramVecMeter {
	p.mu.Lock()
	defer p.mu.Unlock()
	vec, ok := p.histograms[name]
	if !ok {
		floatBuckets := make([]float64, len(buckets))
		for i, b := range buckets {
			floatBuckets[i] = float64(b)
		}
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace, Name: name, Buckets: floatBuckets,
		}, labels)
		p.registry.MustRegister(vec)
		p.histograms[name] = vec
	}
	return &histogramVecMeter{vec: vec}
}

func (p *promTelemetry) GetOrCreateHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

type countVecMeter struct{ vec *prometheus.CounterVec }

func (m *countVecMeter) Add(v int64)                                { m.vec.WithLabelValues().Add(float64(v)) }
func (m *countVecMeter) AddWithLabel(v int64, labels map[string]string) {
	m.vec.With(labels).Add(float64(v))
}

type gaugeVecMeter struct{ vec *prometheus.GaugeVec }

func (m *gaugeVecMeter) Gauge(v int64) { m.vec.WithLabelValues().Set(float64(v)) }
func (m *gaugeVecMeter) GaugeWithLabel(v int64, labels map[string]string) {
	m.vec.With(labels).Set(float64(v))
}

type histogramVecMeter struct{ vec *prometheus.HistogramVec }

func (m *histogramVecMeter) Observe(v int64) { m.vec.WithLabelValues().Observe(float64(v)) }
func (m *histogramVecMeter) ObserveWithLabels(v int64, labels map[string]string) {
	m.vec.With(labels).Observe(float64(v))
}
