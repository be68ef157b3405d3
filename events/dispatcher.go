package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoCodeAlone/colibri/internal/table"
	"github.com/GoCodeAlone/colibri/pattern"
)

// Logger is the structured logger used by the dispatcher. It matches
// colibri.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Recorder receives one callback per finished dispatch.
type Recorder interface {
	EventDispatched(name string, handlers int, state State)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

// Dispatcher matches emitted event names against registered patterns and
// invokes the handlers in table order.
//
// Registration may happen concurrently with dispatching: every dispatch
// works on the table snapshot taken when it starts.
type Dispatcher struct {
	table    table.Table[*Registration]
	builder  *pattern.Builder
	registry *Registry
	logger   Logger
	recorder Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRegistry sets the registry HandleNamed resolves names against.
func WithRegistry(r *Registry) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.registry = r
		}
	}
}

// WithBuilder replaces the pattern builder. The default uses "." as separator.
func WithBuilder(b *pattern.Builder) Option {
	return func(d *Dispatcher) {
		if b != nil {
			d.builder = b
		}
	}
}

// WithRecorder sets a dispatch recorder, typically a metrics collector.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// New creates an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		builder:  pattern.NewBuilder(pattern.EventOptions()),
		registry: NewRegistry(),
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleOption configures a registration.
type HandleOption func(*handleConfig)

type handleConfig struct {
	priority int
}

// WithPriority sets the handler priority. Higher priorities run first;
// the default is 0.
func WithPriority(priority int) HandleOption {
	return func(c *handleConfig) {
		c.priority = priority
	}
}

// Handle registers h for pattern and returns the registration.
func (d *Dispatcher) Handle(pat string, h Handler, opts ...HandleOption) *Registration {
	reg := d.Prepare(pat, h, opts...)
	reg.seq = d.table.Insert(reg, reg.priority)
	d.logger.Debug("Registered event handler", "pattern", pat, "priority", reg.priority, "handler", reg.HandlerName())
	return reg
}

// HandleNamed registers the handler stored in the registry under name.
func (d *Dispatcher) HandleNamed(pat, name string, opts ...HandleOption) (*Registration, error) {
	h, err := d.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return d.Handle(pat, h, opts...), nil
}

// Prepare creates a registration without adding it to the table. Use Swap
// to publish prepared registrations.
func (d *Dispatcher) Prepare(pat string, h Handler, opts ...HandleOption) *Registration {
	var cfg handleConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return newRegistration(d.builder, pat, h, cfg.priority)
}

// Swap atomically removes and adds registrations. Added registrations
// receive sequences in slice order.
func (d *Dispatcher) Swap(remove, add []*Registration) {
	seqs := d.table.Swap(remove, add, (*Registration).Priority)
	for i, reg := range add {
		reg.seq = seqs[i]
	}
	d.logger.Debug("Swapped event handlers", "removed", len(remove), "added", len(add))
}

// Remove unregisters reg and reports whether it was registered.
func (d *Dispatcher) Remove(reg *Registration) bool {
	return d.table.Remove(reg)
}

// Registrations returns the registrations in dispatch order.
func (d *Dispatcher) Registrations() []*Registration {
	return d.table.Values()
}

// Len returns the number of registrations.
func (d *Dispatcher) Len() int {
	return d.table.Len()
}

// Registry returns the handler registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Builder returns the pattern builder.
func (d *Dispatcher) Builder() *pattern.Builder {
	return d.builder
}

// EmitOption configures the event built by Emit.
type EmitOption func(*emitConfig)

type emitConfig struct {
	cancelable bool
	payload    any
}

// Cancelable makes the emitted event cancelable.
func Cancelable() EmitOption {
	return func(c *emitConfig) {
		c.cancelable = true
	}
}

// WithPayload attaches payload to the emitted event.
func WithPayload(payload any) EmitOption {
	return func(c *emitConfig) {
		c.payload = payload
	}
}

// Emit builds an event named name and dispatches it.
func (d *Dispatcher) Emit(ctx context.Context, name string, opts ...EmitOption) (Event, error) {
	var cfg emitConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return d.Dispatch(ctx, NewEvent(name, cfg.cancelable, cfg.payload))
}

// Dispatch delivers ev to every matching handler in table order. Before
// each handler the placeholder values of its pattern are published on the
// event. A cancelled cancelable event stops the loop, including when it was
// cancelled before Dispatch was called.
//
// Handler errors are collected and returned joined once the dispatch is
// over. A pattern that fails to compile aborts the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Event, error) {
	if ev == nil {
		return nil, ErrEventNil
	}
	b := ev.base()
	if b == nil {
		return ev, ErrEventNil
	}

	b.state = StateRunning
	invoked := 0
	var errs []error

	defer func() {
		b.finish()
		if d.recorder != nil {
			d.recorder.EventDispatched(ev.Name(), invoked, b.state)
		}
	}()

	for m, err := range Match(d.table.Values(), ev.Name()) {
		if err != nil {
			d.logger.Error("Invalid event pattern", "pattern", m.Registration.Pattern(), "error", err)
			return ev, err
		}
		if b.stopped() {
			break
		}

		b.params = m.Params
		invoked++
		if herr := m.Registration.handler.HandleEvent(ctx, ev); herr != nil {
			d.logger.Warn("Event handler failed", "event", ev.Name(), "pattern", m.Registration.Pattern(), "error", herr)
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrHandlerFailed, m.Registration.Pattern(), herr))
		}
		if b.stopped() {
			break
		}
	}

	if b.stopped() {
		d.logger.Debug("Event cancelled", "event", ev.Name(), "handlers", invoked)
	}
	return ev, errors.Join(errs...)
}
