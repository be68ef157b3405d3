package metrics

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GoCodeAlone/colibri/events"
	"github.com/GoCodeAlone/colibri/routing"
)

// Collector counts event and route dispatches. It implements
// events.Recorder, routing.Recorder and prometheus.Collector:
//
//	<namespace>_events_emitted_total{outcome="completed|cancelled"}
//	<namespace>_event_handlers_invoked_total
//	<namespace>_routes_dispatched_total{outcome="handled|not_found|denied|error"}
//
// Counters are plain atomics read at scrape time.
type Collector struct {
	emitted  labelCounters
	invoked  atomic.Uint64
	dispatch labelCounters

	emittedDesc  *prometheus.Desc
	invokedDesc  *prometheus.Desc
	dispatchDesc *prometheus.Desc
}

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		emittedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "events", "emitted_total"),
			"Total dispatched events by final state (cumulative)",
			[]string{"outcome"}, nil,
		),
		invokedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "event_handlers", "invoked_total"),
			"Total event handler invocations (cumulative)",
			nil, nil,
		),
		dispatchDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "routes", "dispatched_total"),
			"Total route dispatches by outcome (cumulative)",
			[]string{"outcome"}, nil,
		),
	}
}

// EventDispatched implements events.Recorder.
func (c *Collector) EventDispatched(name string, handlers int, state events.State) {
	c.emitted.inc(state.String())
	c.invoked.Add(uint64(handlers))
}

// RouteDispatched implements routing.Recorder.
func (c *Collector) RouteDispatched(route string, outcome routing.Outcome) {
	c.dispatch.inc(string(outcome))
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.emittedDesc
	ch <- c.invokedDesc
	ch <- c.dispatchDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for label, n := range c.emitted.snapshot() {
		ch <- prometheus.MustNewConstMetric(c.emittedDesc, prometheus.CounterValue, float64(n), label)
	}
	ch <- prometheus.MustNewConstMetric(c.invokedDesc, prometheus.CounterValue, float64(c.invoked.Load()))
	for label, n := range c.dispatch.snapshot() {
		ch <- prometheus.MustNewConstMetric(c.dispatchDesc, prometheus.CounterValue, float64(n), label)
	}
}

// labelCounters is a set of counters keyed by a label value.
type labelCounters struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func (l *labelCounters) inc(label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = make(map[string]uint64)
	}
	l.counts[label]++
}

// snapshot returns a copy of the counters.
func (l *labelCounters) snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.counts)
}
