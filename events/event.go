// Package events implements a pattern based event dispatcher.
//
// Handlers are registered against name patterns such as "user.{id}.saved"
// (see package pattern) with an optional priority. Emitting a name invokes
// every matching handler in table order: higher priority first and, for
// equal priorities, the most recently registered handler first. A
// cancelable event stops the dispatch as soon as a handler cancels it.
//
// Basic usage:
//
//	d := events.New()
//	d.Handle("user.{id}.saved", events.HandlerFunc(func(ctx context.Context, ev events.Event) error {
//		log.Println("saved", ev.Param("id"))
//		return nil
//	}))
//	d.Emit(ctx, "user.42.saved")
//
// Handlers that must survive Export / Import are registered by name through
// a Registry so the table can be captured as data and rebuilt later.
package events

import (
	"github.com/GoCodeAlone/colibri/pattern"
)

// State is the lifecycle state of an event within one dispatch.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCancelled
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Event is a named notification delivered to matching handlers.
//
// Custom events embed *BaseEvent and add their own fields:
//
//	type OrderPlaced struct {
//		*events.BaseEvent
//		OrderID string
//	}
type Event interface {
	// Name is the subject matched against handler patterns.
	Name() string

	// Cancelable reports whether handlers may stop the dispatch.
	Cancelable() bool

	// Cancel marks a cancelable event as cancelled. It has no effect on
	// events that are not cancelable.
	Cancel()

	// Cancelled reports whether Cancel took effect.
	Cancelled() bool

	// State returns the dispatch state.
	State() State

	// Params returns the placeholder values extracted by the pattern of
	// the handler currently running.
	Params() pattern.Params

	// Param returns a single placeholder value.
	Param(name string) string

	// Payload returns the value attached at emit time.
	Payload() any

	base() *BaseEvent
}

// BaseEvent is the default Event implementation.
type BaseEvent struct {
	name       string
	cancelable bool
	cancelled  bool
	state      State
	params     pattern.Params
	payload    any
}

var _ Event = (*BaseEvent)(nil)

// NewEvent creates a pending event.
func NewEvent(name string, cancelable bool, payload any) *BaseEvent {
	return &BaseEvent{
		name:       name,
		cancelable: cancelable,
		payload:    payload,
	}
}

func (e *BaseEvent) Name() string     { return e.name }
func (e *BaseEvent) Cancelable() bool { return e.cancelable }
func (e *BaseEvent) Cancelled() bool  { return e.cancelled }
func (e *BaseEvent) State() State     { return e.state }
func (e *BaseEvent) Payload() any     { return e.payload }

func (e *BaseEvent) Cancel() {
	if e.cancelable {
		e.cancelled = true
	}
}

func (e *BaseEvent) Params() pattern.Params {
	if e.params == nil {
		return pattern.Params{}
	}
	return e.params
}

func (e *BaseEvent) Param(name string) string {
	return e.params.Get(name)
}

func (e *BaseEvent) base() *BaseEvent { return e }

func (e *BaseEvent) stopped() bool {
	return e.cancelable && e.cancelled
}

func (e *BaseEvent) finish() {
	if e.stopped() {
		e.state = StateCancelled
		return
	}
	e.state = StateCompleted
}
