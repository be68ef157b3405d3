package colibri

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/colibri/events"
)

// AllEvents is the pattern an observer registered without patterns
// listens to.
const AllEvents = "{=.+}"

// ObserverPriority is the priority of observer handlers. Observers run
// after every other handler, so a cancelled event never reaches them.
const ObserverPriority = math.MinInt

// CloudEvent is an alias for the CloudEvents Event type for convenience
type CloudEvent = cloudevents.Event

// Observer receives the application's events as CloudEvents. The event
// type is the event name; the placeholder values of the pattern that
// matched and the payload travel in the data (see events.CloudEventData).
type Observer interface {
	// OnEvent is called for every matching event. Observers should return
	// quickly, the dispatch waits for them.
	OnEvent(ctx context.Context, event CloudEvent) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// ObserverInfo describes a registered observer.
type ObserverInfo struct {
	ID           string    `json:"id"`
	Patterns     []string  `json:"patterns"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// FunctionalObserver adapts a function to Observer.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event CloudEvent) error
}

// NewFunctionalObserver creates an observer calling handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event CloudEvent) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

func (f *FunctionalObserver) OnEvent(ctx context.Context, event CloudEvent) error {
	return f.handler(ctx, event)
}

func (f *FunctionalObserver) ObserverID() string {
	return f.id
}

type observerEntry struct {
	info ObserverInfo
	regs []*events.Registration
}

type observers struct {
	mu      sync.Mutex
	entries map[string]*observerEntry
}

// RegisterObserver forwards the events matching any of patterns to
// observer. Without patterns the observer receives every event. An event
// matching several patterns is delivered once per pattern.
func (app *Application) RegisterObserver(observer Observer, patterns ...string) error {
	if observer == nil {
		return ErrObserverNil
	}
	id := observer.ObserverID()
	if id == "" {
		return ErrObserverIDEmpty
	}
	if len(patterns) == 0 {
		patterns = []string{AllEvents}
	}

	app.observers.mu.Lock()
	defer app.observers.mu.Unlock()
	if _, ok := app.observers.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrObserverAlreadyRegistered, id)
	}

	h := events.HandlerFunc(func(ctx context.Context, ev events.Event) error {
		ce, err := events.ToCloudEvent(ev, app.source)
		if err != nil {
			return err
		}
		return observer.OnEvent(ctx, ce)
	})

	for _, pat := range patterns {
		if _, err := app.events.Builder().Compile(pat, nil); err != nil {
			return err
		}
	}
	// Named in the dispatcher registry so snapshots of the application
	// dispatcher can be imported again.
	name := observerHandlerName(id)
	nh, err := app.events.Registry().Register(name, h)
	if err != nil {
		return err
	}

	regs := make([]*events.Registration, len(patterns))
	for i, pat := range patterns {
		regs[i] = app.events.Prepare(pat, nh, events.WithPriority(ObserverPriority))
	}
	app.events.Swap(nil, regs)

	app.observers.entries[id] = &observerEntry{
		info: ObserverInfo{ID: id, Patterns: slices.Clone(patterns), RegisteredAt: time.Now()},
		regs: regs,
	}
	app.logger.Debug("Registered observer", "observer", id, "patterns", strings.Join(patterns, ","))
	return nil
}

// UnregisterObserver stops forwarding events to observer. Unregistering
// an unknown observer is not an error.
func (app *Application) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return ErrObserverNil
	}
	app.observers.mu.Lock()
	defer app.observers.mu.Unlock()

	entry, ok := app.observers.entries[observer.ObserverID()]
	if !ok {
		return nil
	}
	app.events.Swap(entry.regs, nil)
	app.events.Registry().Unregister(observerHandlerName(observer.ObserverID()))
	delete(app.observers.entries, observer.ObserverID())
	app.logger.Debug("Unregistered observer", "observer", observer.ObserverID())
	return nil
}

// Observers returns the registered observers sorted by ID.
func (app *Application) Observers() []ObserverInfo {
	app.observers.mu.Lock()
	defer app.observers.mu.Unlock()

	infos := make([]ObserverInfo, 0, len(app.observers.entries))
	for _, e := range app.observers.entries {
		info := e.info
		info.Patterns = slices.Clone(info.Patterns)
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b ObserverInfo) int { return strings.Compare(a.ID, b.ID) })
	return infos
}

func observerHandlerName(id string) string {
	return "observer:" + id
}
