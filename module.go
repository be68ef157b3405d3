// Package colibri assembles an event dispatcher and a request router into
// an application built from modules.
//
// A module is the basic building block of an application. It can declare
// dependencies on other modules, register event handlers and routes, and
// take part in the start and stop lifecycle.
//
// Basic usage:
//
//	app := colibri.New(cfg, colibri.NewSlogLogger(nil))
//	app.RegisterModule(httpserver.New())
//	app.RegisterModule(&MyModule{})
//	if err := app.Run(); err != nil {
//		log.Fatal(err)
//	}
package colibri

import (
	"context"

	"github.com/GoCodeAlone/colibri/events"
	"github.com/GoCodeAlone/colibri/routing"
)

// Module represents a registrable component in the application.
type Module interface {
	// Name returns the unique identifier for this module. It is used for
	// dependency resolution and in lifecycle event names, so it must be
	// unique within the application.
	//
	// Example: "httpserver", "scheduler", "eventtable"
	Name() string

	// Init initializes the module. It is called in dependency order after
	// the configuration is loaded: modules that depend on others are
	// initialized after their dependencies.
	Init(app *Application) error
}

// DependencyAware is an interface for modules that depend on other modules.
// Dependencies are resolved by module name and must be exact matches.
// Circular dependencies make Init fail.
type DependencyAware interface {
	// Dependencies returns the names of the modules this module depends on.
	//
	// Example:
	//   func (m *WebModule) Dependencies() []string {
	//       return []string{"eventtable"}
	//   }
	Dependencies() []string
}

// EventAware is an interface for modules that register event handlers.
// RegisterEvents is called right after the module's Init.
type EventAware interface {
	RegisterEvents(d *events.Dispatcher) error
}

// RouteAware is an interface for modules that register routes.
// RegisterRoutes is called right after RegisterEvents.
type RouteAware interface {
	RegisterRoutes(r *routing.Router) error
}

// Startable is an interface for modules that need to perform startup
// operations such as opening listeners or starting background loops.
type Startable interface {
	// Start begins the module's runtime operations. It is called in
	// dependency order after every module has been initialized.
	//
	// The provided context is the application's lifecycle context. When it
	// is cancelled the module should stop its background work.
	Start(ctx context.Context) error
}

// Stoppable is an interface for modules that need to perform cleanup
// operations. Stop is called in reverse dependency order.
type Stoppable interface {
	// Stop performs graceful shutdown of the module. The context carries
	// the shutdown timeout.
	Stop(ctx context.Context) error
}

// ModuleRegistry represents a registry of modules keyed by their names.
type ModuleRegistry map[string]Module
