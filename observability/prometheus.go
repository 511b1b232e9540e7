package observability

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var _ MetricFactory = (*PrometheusFactory)(nil)

// latencyBuckets are sync latency buckets in milliseconds.
var latencyBuckets = []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// PrometheusFactory creates Prometheus collectors on its own registry.
// Dotted metric names are rewritten to Prometheus form, and counters get a
// _total suffix.
type PrometheusFactory struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

func NewPrometheusFactory() *PrometheusFactory {
	return &PrometheusFactory{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Registry returns the registry holding every collector created so far.
func (f *PrometheusFactory) Registry() *prometheus.Registry { return f.registry }

// Counter implements MetricFactory. Asking twice for a name returns the
// same counter.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: promName(name) + "_total",
		Help: "Total " + strings.ReplaceAll(name, ".", " ") + ".",
	})
	c = register(f.registry, c)
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory. Names ending in _ms use latency
// buckets; others use the Prometheus defaults.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	opts := prometheus.HistogramOpts{
		Name: promName(name),
		Help: "Distribution of " + strings.ReplaceAll(name, ".", " ") + ".",
	}
	if strings.HasSuffix(name, "_ms") {
		opts.Buckets = latencyBuckets
	}
	h := register(f.registry, prometheus.NewHistogram(opts))
	f.histograms[name] = h
	return h
}

// WriteToTextfile writes the registry in the node exporter textfile format.
// The write is atomic.
func (f *PrometheusFactory) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, f.registry)
}

// register adds c to reg, returning the already registered collector when
// an identical one exists.
func register[C prometheus.Collector](reg *prometheus.Registry, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
