// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
)

// nameRE matches the naming rule enforced on every metric and label name:
// lowercase, starting with a letter, underscore-separated.
var nameRE = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Type is the Prometheus metric kind a Handle wraps.
type Type int

const (
	TypeGauge Type = iota
	TypeCounter
	TypeHistogram
	TypeInfo
)

// Handle is the only object collectors hold to write a metric. It carries
// enough information for the expiration reaper to delete a stale series
// from the underlying vector without collector involvement.
type Handle struct {
	name       string
	kind       Type
	labelNames []string

	gauge     *prometheus.GaugeVec
	counter   *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// Name returns the metric's registered name.
func (h *Handle) Name() string { return h.name }

type entryKey struct {
	metric string
	labels string
}

type entryState struct {
	handle      *Handle
	labelValues []string
	tier        merakitypes.Tier
	lastWritten time.Time
}

// Registry owns a dedicated, non-global prometheus.Registry plus the
// (metric, label tuple) -> last-write-time side table that the expiration
// manager reaps against. Collectors never see the underlying
// *prometheus.Registry; Write is the only path in.
type Registry struct {
	reg *prometheus.Registry
	fac promauto.Factory

	mu      sync.Mutex
	entries map[entryKey]*entryState
}

// New creates a Registry backed by a fresh prometheus.Registry, with the
// standard Go runtime and process collectors attached so the exporter
// reports on itself the way any well-behaved Prometheus exporter does.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return &Registry{
		reg:     reg,
		fac:     promauto.With(reg),
		entries: make(map[entryKey]*entryState),
	}
}

// Gatherer exposes the underlying registry for the /metrics HTTP handler.
// This is the one sanctioned form of "raw registry access": exposition,
// never collector writes.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func validateNames(name string, labelNames []string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("metric name %q must match %s", name, nameRE.String())
	}
	for _, l := range labelNames {
		if !nameRE.MatchString(l) {
			return fmt.Errorf("label name %q on metric %q must match %s", l, name, nameRE.String())
		}
	}
	return nil
}

// NewGauge declares a gauge metric and returns its write Handle. Panics on
// a name/label validation failure: these are programmer errors caught at
// collector initialize_metrics() time, never at collection time.
func (r *Registry) NewGauge(name, help string, labelNames ...string) *Handle {
	if err := validateNames(name, labelNames); err != nil {
		panic(err)
	}
	gv := r.fac.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labelNames)
	return &Handle{name: name, kind: TypeGauge, labelNames: labelNames, gauge: gv}
}

// NewCounter declares a counter metric and returns its write Handle.
func (r *Registry) NewCounter(name, help string, labelNames ...string) *Handle {
	if err := validateNames(name, labelNames); err != nil {
		panic(err)
	}
	cv := r.fac.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames)
	return &Handle{name: name, kind: TypeCounter, labelNames: labelNames, counter: cv}
}

// NewHistogram declares a histogram metric and returns its write Handle.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labelNames ...string) *Handle {
	if err := validateNames(name, labelNames); err != nil {
		panic(err)
	}
	hv := r.fac.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labelNames)
	return &Handle{name: name, kind: TypeHistogram, labelNames: labelNames, histogram: hv}
}

// NewInfo declares an info metric: a gauge that is always written with
// value 1 and carries semantic labels only (spec.md §4.3).
func (r *Registry) NewInfo(name, help string, labelNames ...string) *Handle {
	if err := validateNames(name, labelNames); err != nil {
		panic(err)
	}
	gv := r.fac.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labelNames)
	return &Handle{name: name, kind: TypeInfo, labelNames: labelNames, gauge: gv}
}

func labelKey(labelValues []string) string {
	return strings.Join(labelValues, "\x1f")
}

// Write is the only path collectors use to publish a value. It records
// the observation on the underlying Prometheus collector and stamps the
// (metric, label tuple) in the expiration side table.
func (r *Registry) Write(h *Handle, labelValues []string, value float64, tier merakitypes.Tier) error {
	if len(labelValues) != len(h.labelNames) {
		return fmt.Errorf("metric %q: got %d label values, want %d", h.name, len(labelValues), len(h.labelNames))
	}

	switch h.kind {
	case TypeGauge:
		h.gauge.WithLabelValues(labelValues...).Set(value)
	case TypeCounter:
		h.counter.WithLabelValues(labelValues...).Add(value)
	case TypeHistogram:
		h.histogram.WithLabelValues(labelValues...).Observe(value)
	case TypeInfo:
		h.gauge.WithLabelValues(labelValues...).Set(1)
	default:
		return fmt.Errorf("metric %q: unknown handle kind %d", h.name, h.kind)
	}

	key := entryKey{metric: h.name, labels: labelKey(labelValues)}
	stored := append([]string(nil), labelValues...)

	r.mu.Lock()
	r.entries[key] = &entryState{handle: h, labelValues: stored, tier: tier, lastWritten: time.Now()}
	r.mu.Unlock()

	return nil
}

// WriteInfo writes an info metric (value fixed at 1); it is an error to
// call it on a non-info Handle.
func (r *Registry) WriteInfo(h *Handle, labelValues []string, tier merakitypes.Tier) error {
	if h.kind != TypeInfo {
		return fmt.Errorf("metric %q is not an info metric", h.name)
	}
	return r.Write(h, labelValues, 1, tier)
}

// SeriesCount returns the number of (metric, label tuple) entries tracked
// for expiration. Exposed for tests.
func (r *Registry) SeriesCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
