package eventtable

import (
	"fmt"
	"os"

	"github.com/GoCodeAlone/colibri/events"
)

// File is the content of a bindings file:
//
//	bindings:
//	  - pattern: "user.{id}.saved"
//	    handler: audit
//	    priority: 10
//	    where:
//	      id: '\d+'
//	    where_in:
//	      kind: [admin, staff]
//
// The same structure is accepted in TOML and JSON.
type File struct {
	Bindings []Binding `yaml:"bindings" toml:"bindings" json:"bindings"`
}

// Binding maps a pattern to a handler of the dispatcher registry.
type Binding struct {
	Pattern  string              `yaml:"pattern" toml:"pattern" json:"pattern"`
	Handler  string              `yaml:"handler" toml:"handler" json:"handler"`
	Priority int                 `yaml:"priority" toml:"priority" json:"priority"`
	Where    map[string]string   `yaml:"where,omitempty" toml:"where,omitempty" json:"where,omitempty"`
	WhereIn  map[string][]string `yaml:"where_in,omitempty" toml:"where_in,omitempty" json:"where_in,omitempty"`
}

// Load reads a bindings file. The format follows the file extension.
func Load(path string) (*File, error) {
	format, err := events.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event table: %w", err)
	}
	var f File
	if err := events.Decode(data, format, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Prepare resolves the handlers of f against the registry of d and
// compiles every pattern. The registrations are not published: pass them
// to d.Swap. Bindings keep their file order, so at equal priority a later
// binding runs first.
func (f *File) Prepare(d *events.Dispatcher) ([]*events.Registration, error) {
	regs := make([]*events.Registration, 0, len(f.Bindings))
	for i, b := range f.Bindings {
		if b.Pattern == "" {
			return nil, fmt.Errorf("%w: binding %d", ErrPatternEmpty, i)
		}
		h, err := d.Registry().Lookup(b.Handler)
		if err != nil {
			return nil, fmt.Errorf("binding %d (%s): %w", i, b.Pattern, err)
		}

		reg := d.Prepare(b.Pattern, h, events.WithPriority(b.Priority))
		for name, re := range b.Where {
			reg.Where(name, re)
		}
		for name, values := range b.WhereIn {
			reg.WhereIn(name, values...)
		}
		if _, err := reg.Compiled(); err != nil {
			return nil, fmt.Errorf("binding %d: %w", i, err)
		}
		regs = append(regs, reg)
	}
	return regs, nil
}
