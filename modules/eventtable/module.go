// Package eventtable binds event patterns to named handlers from a file.
//
// Handlers are registered in the dispatcher registry under a name, in
// code; the file decides which patterns they listen to and with which
// priority. The table is applied atomically: a dispatch sees either the
// previous bindings or the new ones. With watching enabled, the file is
// reloaded when it changes, and a file that fails to load leaves the
// current bindings in place.
//
// Usage:
//
//	app.Events().Registry().MustRegister("audit", auditHandler)
//	app.RegisterModule(eventtable.New())
package eventtable

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/GoCodeAlone/colibri"
	"github.com/GoCodeAlone/colibri/events"
)

// ModuleName is the name of this module for registration and dependency resolution.
const ModuleName = "eventtable"

// Reloaded is emitted after the file was applied. Its payload is the
// number of bindings.
const Reloaded = "eventtable.reloaded"

// Module applies a bindings file to the application dispatcher.
type Module struct {
	cfg        colibri.EventTableConfig
	deps       []string
	logger     colibri.Logger
	dispatcher *events.Dispatcher

	mu      sync.Mutex
	current []*events.Registration

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures the module.
type Option func(*Module)

// WithPath overrides the path of the "eventtable" configuration section.
func WithPath(path string) Option {
	return func(m *Module) {
		m.cfg.Path = path
	}
}

// WithWatch overrides the watch flag of the configuration section.
func WithWatch(watch bool) Option {
	return func(m *Module) {
		m.cfg.Watch = watch
	}
}

// WithDependencies names the modules registering the handlers the file
// refers to, so that they are initialized first.
func WithDependencies(names ...string) Option {
	return func(m *Module) {
		m.deps = append(m.deps, names...)
	}
}

// New creates the module. Options take precedence over the configuration.
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

func (m *Module) Dependencies() []string {
	return m.deps
}

// Init merges the "eventtable" configuration section under the options.
func (m *Module) Init(app *colibri.Application) error {
	cfg := app.Config().EventTable
	if m.cfg.Path != "" {
		cfg.Path = m.cfg.Path
	}
	cfg.Watch = cfg.Watch || m.cfg.Watch
	m.cfg = cfg
	m.logger = app.Logger()
	m.dispatcher = app.Events()
	return nil
}

// RegisterEvents applies the file. Every handler it names must already be
// in the registry.
func (m *Module) RegisterEvents(d *events.Dispatcher) error {
	if m.cfg.Path == "" {
		m.logger.Debug("No event table configured, skipping")
		return nil
	}
	m.dispatcher = d
	return m.Reload(context.Background())
}

// Reload loads the file and swaps the current bindings for the new ones.
func (m *Module) Reload(ctx context.Context) error {
	if m.dispatcher == nil {
		return ErrNotInitialized
	}
	f, err := Load(m.cfg.Path)
	if err != nil {
		return err
	}
	regs, err := f.Prepare(m.dispatcher)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.dispatcher.Swap(m.current, regs)
	m.current = regs
	m.mu.Unlock()

	m.logger.Info("Loaded event table", "path", m.cfg.Path, "bindings", len(regs))
	if _, err := m.dispatcher.Emit(ctx, Reloaded, events.WithPayload(len(regs))); err != nil {
		m.logger.Warn("Event table reload handler failed", "error", err)
	}
	return nil
}

// Bindings returns the registrations applied from the file.
func (m *Module) Bindings() []*events.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*events.Registration(nil), m.current...)
}

// Start watches the file when watching is enabled. The directory is
// watched rather than the file so that editors replacing the file are
// noticed.
func (m *Module) Start(ctx context.Context) error {
	if m.cfg.Path == "" || !m.cfg.Watch {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("eventtable: create fsnotify watcher: %w", err)
	}
	path, err := filepath.Abs(m.cfg.Path)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("eventtable: resolve path: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("eventtable: watch %s: %w", filepath.Dir(path), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.watcher = w
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.watch(ctx, w, path)
	}()
	m.logger.Info("Watching event table", "path", path)
	return nil
}

func (m *Module) watch(ctx context.Context, w *fsnotify.Watcher, path string) {
	debounce := m.cfg.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if err := m.Reload(ctx); err != nil {
			m.logger.Error("Failed to reload event table, keeping current bindings", "path", path, "error", err)
		}
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			mu.Lock()
			if timer == nil {
				timer = time.AfterFunc(debounce, fire)
			} else {
				timer.Reset(debounce)
			}
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.logger.Warn("Event table watcher error", "error", err)
		}
	}
}

// Stop ends the watcher.
func (m *Module) Stop(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	err := m.watcher.Close()
	m.wg.Wait()
	m.cancel, m.watcher = nil, nil
	if err != nil {
		return fmt.Errorf("eventtable: close watcher: %w", err)
	}
	return nil
}
