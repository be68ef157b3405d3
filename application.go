package colibri

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/GoCodeAlone/colibri/events"
	"github.com/GoCodeAlone/colibri/pattern"
	"github.com/GoCodeAlone/colibri/routing"
)

// Lifecycle events, written with "." and emitted with the configured
// separator.
const (
	EventModuleInitialized = "app.module.{module}.initialized"
	EventAppInitialized    = "app.initialized"
	EventAppStarted        = "app.started"
	EventAppStopping       = "app.stopping"
	EventAppStopped        = "app.stopped"
)

// DefaultShutdownTimeout bounds Stop when Run handles a signal.
const DefaultShutdownTimeout = 30 * time.Second

// DefaultSource is the CloudEvents source of forwarded events.
const DefaultSource = "colibri"

// Application owns the event dispatcher, the router and the modules.
type Application struct {
	cfg     *Config
	logger  Logger
	events  *events.Dispatcher
	router  *routing.Router
	source  string
	modules ModuleRegistry
	order   []string

	eventOpts  []events.Option
	routerOpts []routing.Option

	observers observers

	mu          sync.Mutex
	initialized bool
	started     []string
	cancel      context.CancelFunc
}

// Option configures an Application.
type Option func(*Application)

// WithEventOptions passes options to the event dispatcher. They are
// applied after the options derived from the configuration.
func WithEventOptions(opts ...events.Option) Option {
	return func(app *Application) {
		app.eventOpts = append(app.eventOpts, opts...)
	}
}

// WithRouterOptions passes options to the router. They are applied after
// the options derived from the configuration.
func WithRouterOptions(opts ...routing.Option) Option {
	return func(app *Application) {
		app.routerOpts = append(app.routerOpts, opts...)
	}
}

// WithSource sets the CloudEvents source of events forwarded to observers.
func WithSource(source string) Option {
	return func(app *Application) {
		if source != "" {
			app.source = source
		}
	}
}

// New creates an application. A nil cfg means DefaultConfig and a nil
// logger means NewSlogLogger(nil). cfg must already be loaded; call
// LoadConfig first to feed it from files and the environment.
func New(cfg *Config, logger Logger, opts ...Option) *Application {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	app := &Application{
		cfg:       cfg,
		logger:    logger,
		source:    DefaultSource,
		modules:   make(ModuleRegistry),
		observers: observers{entries: make(map[string]*observerEntry)},
	}
	for _, opt := range opts {
		opt(app)
	}

	evOpts := []events.Option{events.WithLogger(logger)}
	if len(cfg.Events.Separator) == 1 {
		evOpts = append(evOpts, events.WithBuilder(pattern.NewBuilder(pattern.Options{Separator: cfg.Events.Separator[0]})))
	}
	app.events = events.New(append(evOpts, app.eventOpts...)...)

	rtOpts := []routing.Option{routing.WithLogger(logger), routing.WithCaseInsensitive(cfg.Routing.CaseInsensitive)}
	app.router = routing.New(append(rtOpts, app.routerOpts...)...)
	app.router.SetGlobal("app", app)
	return app
}

// Config returns the application configuration.
func (app *Application) Config() *Config {
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() Logger {
	return app.logger
}

// Events returns the event dispatcher.
func (app *Application) Events() *events.Dispatcher {
	return app.events
}

// Router returns the router.
func (app *Application) Router() *routing.Router {
	return app.router
}

// RegisterModule adds module to the application. It must be called
// before Init.
func (app *Application) RegisterModule(module Module) error {
	if module == nil {
		return ErrModuleNil
	}
	app.mu.Lock()
	defer app.mu.Unlock()

	name := module.Name()
	if _, ok := app.modules[name]; ok {
		return fmt.Errorf("%w: %s", ErrModuleAlreadyRegistered, name)
	}
	app.modules[name] = module
	app.logger.Debug("Registered module", "module", name)
	return nil
}

// Module returns the module registered under name.
func (app *Application) Module(name string) (Module, bool) {
	app.mu.Lock()
	defer app.mu.Unlock()
	m, ok := app.modules[name]
	return m, ok
}

// Init validates the configuration and initializes the modules in
// dependency order. For each module it calls Init, RegisterEvents and
// RegisterRoutes, then emits app.module.{module}.initialized. Calling
// Init again is a no-op.
func (app *Application) Init() error {
	app.mu.Lock()
	if app.initialized {
		app.mu.Unlock()
		return nil
	}
	if err := ValidateConfig(app.cfg); err != nil {
		app.mu.Unlock()
		return fmt.Errorf("invalid config: %w", err)
	}
	order, err := app.resolveDependencies()
	if err != nil {
		app.mu.Unlock()
		return fmt.Errorf("failed to resolve dependencies: %w", err)
	}
	app.order = order
	app.mu.Unlock()

	ctx := context.Background()
	for _, name := range order {
		module := app.modules[name]
		if err := app.initModule(module); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrModuleInitFailed, name, err)
		}
		app.logger.Info("Initialized module", "module", name, "type", fmt.Sprintf("%T", module))
		app.emit(ctx, app.eventName("app.module."+name+".initialized"), false, name)
	}

	app.mu.Lock()
	app.initialized = true
	app.mu.Unlock()
	app.emit(ctx, app.eventName(EventAppInitialized), false, order)
	return nil
}

func (app *Application) initModule(module Module) error {
	if err := module.Init(app); err != nil {
		return err
	}
	if m, ok := module.(EventAware); ok {
		if err := m.RegisterEvents(app.events); err != nil {
			return fmt.Errorf("register events: %w", err)
		}
	}
	if m, ok := module.(RouteAware); ok {
		if err := m.RegisterRoutes(app.router); err != nil {
			return fmt.Errorf("register routes: %w", err)
		}
	}
	return nil
}

// Start starts the Startable modules in dependency order and emits
// app.started. If a module fails to start, the modules already started
// are stopped in reverse order.
func (app *Application) Start(ctx context.Context) error {
	app.mu.Lock()
	if !app.initialized {
		app.mu.Unlock()
		return ErrApplicationNotInitialized
	}
	ctx, cancel := context.WithCancel(ctx)
	app.cancel = cancel
	app.started = app.started[:0]
	order := slices.Clone(app.order)
	app.mu.Unlock()

	for _, name := range order {
		m, ok := app.modules[name].(Startable)
		if !ok {
			app.logger.Debug("Module does not implement Startable, skipping", "module", name)
			continue
		}
		app.logger.Info("Starting module", "module", name)
		if err := m.Start(ctx); err != nil {
			app.logger.Error("Failed to start module", "module", name, "error", err)
			stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
			_ = app.stopModules(stopCtx)
			stopCancel()
			cancel()
			return fmt.Errorf("%w: %s: %w", ErrModuleStartFailed, name, err)
		}
		app.mu.Lock()
		app.started = append(app.started, name)
		app.mu.Unlock()
	}

	app.emit(ctx, app.eventName(EventAppStarted), false, nil)
	return nil
}

// Stop emits the cancelable app.stopping event. When a handler cancels it
// Stop returns ErrStopCancelled and the application keeps running.
// Otherwise the started modules are stopped in reverse dependency order,
// the lifecycle context is cancelled and app.stopped is emitted. Errors of
// individual modules are joined.
func (app *Application) Stop(ctx context.Context) error {
	ev := app.emit(ctx, app.eventName(EventAppStopping), true, nil)
	if ev != nil && ev.Cancelled() {
		app.logger.Info("Application stop cancelled")
		return ErrStopCancelled
	}

	err := app.stopModules(ctx)

	app.mu.Lock()
	if app.cancel != nil {
		app.cancel()
		app.cancel = nil
	}
	app.mu.Unlock()

	app.emit(ctx, app.eventName(EventAppStopped), false, nil)
	return err
}

func (app *Application) stopModules(ctx context.Context) error {
	app.mu.Lock()
	started := slices.Clone(app.started)
	app.started = app.started[:0]
	app.mu.Unlock()

	var errs []error
	for _, name := range slices.Backward(started) {
		m, ok := app.modules[name].(Stoppable)
		if !ok {
			continue
		}
		app.logger.Info("Stopping module", "module", name)
		if err := m.Stop(ctx); err != nil {
			app.logger.Error("Error stopping module", "module", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Run initializes and starts the application, then blocks until SIGINT
// or SIGTERM and stops it. A cancelled app.stopping event keeps the
// application running until the next signal.
func (app *Application) Run() error {
	if err := app.Init(); err != nil {
		return err
	}
	if err := app.Start(context.Background()); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		sig := <-sigChan
		app.logger.Info("Received signal, shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		err := app.Stop(ctx)
		cancel()
		if errors.Is(err, ErrStopCancelled) {
			continue
		}
		return err
	}
}

// emit dispatches a lifecycle event. Handler errors are logged: they never
// fail the lifecycle step.
func (app *Application) emit(ctx context.Context, name string, cancelable bool, payload any) events.Event {
	opts := []events.EmitOption{events.WithPayload(payload)}
	if cancelable {
		opts = append(opts, events.Cancelable())
	}
	ev, err := app.events.Emit(ctx, name, opts...)
	if err != nil {
		app.logger.Warn("Lifecycle event handler failed", "event", name, "error", err)
	}
	return ev
}

// eventName rewrites a "." separated name with the dispatcher separator.
func (app *Application) eventName(name string) string {
	sep := string(app.events.Builder().Separator())
	if sep == "." {
		return name
	}
	return strings.ReplaceAll(name, ".", sep)
}

// resolveDependencies returns the module names in initialization order.
// Modules without dependencies keep a stable, sorted order.
func (app *Application) resolveDependencies() ([]string, error) {
	graph := make(map[string][]string, len(app.modules))
	for name, module := range app.modules {
		if m, ok := module.(DependencyAware); ok {
			graph[name] = m.Dependencies()
		} else {
			graph[name] = nil
		}
	}

	var result []string
	visited := make(map[string]bool)
	temp := make(map[string]bool)

	var visit func(string, []string) error
	visit = func(node string, path []string) error {
		if temp[node] {
			return fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(append(path, node), " -> "))
		}
		if visited[node] {
			return nil
		}
		temp[node] = true
		for _, dep := range graph[node] {
			if _, exists := app.modules[dep]; !exists {
				return fmt.Errorf("%w: %s depends on non-existent module %s", ErrModuleDependencyMissing, node, dep)
			}
			if err := visit(dep, append(path, node)); err != nil {
				return err
			}
		}
		visited[node] = true
		temp[node] = false
		result = append(result, node)
		return nil
	}

	names := make([]string, 0, len(graph))
	for name := range graph {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}

	app.logger.Debug("Module initialization order", "order", result)
	return result, nil
}
