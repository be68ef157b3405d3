// Package metrics exposes dispatch counters in the Prometheus format.
//
// The collector has to be attached to the dispatcher and router when the
// application is created, so the module hands out an application option:
//
//	m := metrics.New()
//	app := colibri.New(cfg, logger, m.Install())
//	app.RegisterModule(m)
//	app.RegisterModule(httpserver.New(httpserver.WithHandler("/metrics", m.Handler())))
package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoCodeAlone/colibri"
	"github.com/GoCodeAlone/colibri/events"
	"github.com/GoCodeAlone/colibri/routing"
)

// ModuleName is the name of this module for registration and dependency resolution.
const ModuleName = "metrics"

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "colibri"

// ErrNotInstalled is returned by Init when the application was created
// without the option returned by Install.
var ErrNotInstalled = errors.New("metrics collector not installed on the application")

// Module owns a Prometheus registry holding the dispatch collector.
type Module struct {
	namespace string
	runtime   bool
	collector *Collector
	registry  *prometheus.Registry
	installed bool
}

// Option configures the module.
type Option func(*Module)

// WithNamespace sets the metric name prefix.
func WithNamespace(namespace string) Option {
	return func(m *Module) {
		m.namespace = namespace
	}
}

// WithRuntimeMetrics also registers the Go runtime and process collectors.
func WithRuntimeMetrics() Option {
	return func(m *Module) {
		m.runtime = true
	}
}

// New creates the module and its registry.
func New(opts ...Option) *Module {
	m := &Module{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(m)
	}
	m.collector = NewCollector(m.namespace)
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.collector)
	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Install returns the application option attaching the collector to the
// event dispatcher and the router.
func (m *Module) Install() colibri.Option {
	return func(app *colibri.Application) {
		m.installed = true
		colibri.WithEventOptions(events.WithRecorder(m.collector))(app)
		colibri.WithRouterOptions(routing.WithRecorder(m.collector))(app)
	}
}

func (m *Module) Name() string {
	return ModuleName
}

func (m *Module) Init(app *colibri.Application) error {
	if !m.installed {
		return fmt.Errorf("%w: pass Install() to colibri.New", ErrNotInstalled)
	}
	app.Logger().Debug("Metrics collector installed", "namespace", m.namespace)
	return nil
}

// Collector returns the dispatch collector.
func (m *Module) Collector() *Collector {
	return m.collector
}

// Registry returns the registry backing Handler. Other collectors may be
// registered on it.
func (m *Module) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Module) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
