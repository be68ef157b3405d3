// Package httpserver serves the application router over HTTP.
//
// The module builds a chi mux with request ID, real IP and panic recovery
// middleware, mounts any extra handlers (a metrics endpoint, for
// instance) and sends every other request to the router. It listens on
// the address of the "http" configuration section.
//
// Usage:
//
//	app.RegisterModule(httpserver.New(
//		httpserver.WithHandler("/metrics", collector.Handler()),
//	))
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoCodeAlone/colibri"
	"github.com/GoCodeAlone/colibri/routing"
)

// ModuleName is the name of this module for registration and dependency resolution.
const ModuleName = "httpserver"

type mount struct {
	pattern string
	handler http.Handler
}

// Module serves the application router.
type Module struct {
	cfg        colibri.HTTPConfig
	logger     colibri.Logger
	router     *routing.Router
	mounts     []mount
	middleware []func(http.Handler) http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// Option configures the module.
type Option func(*Module)

// WithHandler serves pattern with h instead of the router. Patterns use
// chi syntax.
func WithHandler(pattern string, h http.Handler) Option {
	return func(m *Module) {
		m.mounts = append(m.mounts, mount{pattern: pattern, handler: h})
	}
}

// WithMiddleware adds net/http middleware after the default chi stack.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(m *Module) {
		m.middleware = append(m.middleware, mw...)
	}
}

// New creates the module.
func New(opts ...Option) *Module {
	m := &Module{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string {
	return ModuleName
}

// Init reads the "http" configuration section.
func (m *Module) Init(app *colibri.Application) error {
	m.cfg = app.Config().HTTP
	m.logger = app.Logger()
	m.router = app.Router()
	return nil
}

// Handler returns the complete HTTP handler: the chi middleware stack,
// the extra handlers and the router.
func (m *Module) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	mux.Use(m.middleware...)
	for _, mt := range m.mounts {
		mux.Handle(mt.pattern, mt.handler)
	}
	mux.Handle("/*", Handler(m.router, m.logger))
	return mux
}

// Start listens on the configured address and serves in the background.
func (m *Module) Start(ctx context.Context) error {
	if m.router == nil {
		return ErrNotInitialized
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != nil {
		return ErrServerAlreadyStarted
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", m.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.cfg.Address, err)
	}

	m.server = &http.Server{
		Handler:      m.Handler(),
		ReadTimeout:  m.cfg.ReadTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		IdleTimeout:  m.cfg.IdleTimeout,
	}
	m.listener = ln
	m.done = make(chan struct{})

	server, done := m.server, m.done
	go func() {
		defer close(done)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the address the server listens on, or "" before Start.
func (m *Module) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Stop shuts the server down gracefully within the configured shutdown
// timeout.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	server, done := m.server, m.done
	m.server, m.listener, m.done = nil, nil, nil
	m.mu.Unlock()
	if server == nil {
		return ErrServerNotStarted
	}

	m.logger.Info("Stopping HTTP server", "timeout", m.cfg.ShutdownTimeout)
	if m.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}
	<-done
	m.logger.Info("HTTP server stopped")
	return nil
}
