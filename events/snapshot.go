package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/colibri/internal/table"
	"github.com/GoCodeAlone/colibri/pattern"
)

// SnapshotVersion is the current snapshot layout version.
const SnapshotVersion = 1

// Snapshot is a dispatcher captured as data. Handlers are referenced by
// registry name, so a snapshot can be stored and imported in another
// process that registers the same names.
type Snapshot struct {
	Version         int             `json:"version" yaml:"version" toml:"version"`
	Separator       string          `json:"separator" yaml:"separator" toml:"separator"`
	CaseInsensitive bool            `json:"case_insensitive,omitempty" yaml:"case_insensitive,omitempty" toml:"case_insensitive,omitempty"`
	DefaultRegex    string          `json:"default_regex,omitempty" yaml:"default_regex,omitempty" toml:"default_regex,omitempty"`
	Handlers        []HandlerRecord `json:"handlers" yaml:"handlers" toml:"handlers"`
}

// HandlerRecord is one exported registration.
type HandlerRecord struct {
	Pattern      string            `json:"pattern" yaml:"pattern" toml:"pattern"`
	Handler      string            `json:"handler" yaml:"handler" toml:"handler"`
	Priority     int               `json:"priority" yaml:"priority" toml:"priority"`
	Sequence     int64             `json:"sequence" yaml:"sequence" toml:"sequence"`
	Constraints  map[string]string `json:"constraints,omitempty" yaml:"constraints,omitempty" toml:"constraints,omitempty"`
	Regex        string            `json:"regex,omitempty" yaml:"regex,omitempty" toml:"regex,omitempty"`
	Placeholders []string          `json:"placeholders,omitempty" yaml:"placeholders,omitempty" toml:"placeholders,omitempty"`
}

// Export captures the registration table, including compiled patterns.
// Every handler must be named.
func (d *Dispatcher) Export() (*Snapshot, error) {
	opts := d.builder.Options()
	snap := &Snapshot{
		Version:         SnapshotVersion,
		Separator:       string(opts.Separator),
		CaseInsensitive: opts.CaseInsensitive,
		DefaultRegex:    opts.DefaultRegex,
	}

	for _, e := range d.table.Entries() {
		reg := e.Value
		name := reg.HandlerName()
		if name == "" {
			return nil, fmt.Errorf("%w: pattern %q", ErrHandlerNotNamed, reg.Pattern())
		}
		compiled, err := reg.Compiled()
		if err != nil {
			return nil, err
		}

		rec := HandlerRecord{
			Pattern:      reg.Pattern(),
			Handler:      name,
			Priority:     e.Priority,
			Sequence:     int64(e.Sequence),
			Regex:        compiled.String(),
			Placeholders: compiled.Placeholders,
		}
		if c := reg.Constraints(); len(c) > 0 {
			rec.Constraints = c
		}
		snap.Handlers = append(snap.Handlers, rec)
	}

	return snap, nil
}

// Import rebuilds a dispatcher from snap, resolving handler names in
// registry. The rebuilt table has the same order as the exported one.
func Import(snap *Snapshot, registry *Registry, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, ErrRegistryNil
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSnapshotVersion, snap.Version)
	}
	if len(snap.Separator) != 1 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeparator, snap.Separator)
	}

	builder := pattern.NewBuilder(pattern.Options{
		Separator:       snap.Separator[0],
		CaseInsensitive: snap.CaseInsensitive,
		DefaultRegex:    snap.DefaultRegex,
	})
	base := []Option{WithBuilder(builder), WithRegistry(registry)}
	d := New(append(base, opts...)...)

	entries := make([]table.Entry[*Registration], 0, len(snap.Handlers))
	for _, rec := range snap.Handlers {
		h, err := registry.Lookup(rec.Handler)
		if err != nil {
			return nil, fmt.Errorf("import pattern %q: %w", rec.Pattern, err)
		}

		reg := newRegistration(d.builder, rec.Pattern, h, rec.Priority)
		reg.seq = uint64(rec.Sequence)
		for name, expr := range rec.Constraints {
			reg.constraints[name] = expr
		}
		if rec.Regex != "" {
			compiled, err := pattern.Restore(rec.Pattern, rec.Regex, rec.Placeholders)
			if err != nil {
				return nil, err
			}
			reg.restore(compiled)
		}

		entries = append(entries, table.Entry[*Registration]{
			Value:    reg,
			Priority: reg.priority,
			Sequence: reg.seq,
		})
	}

	d.table.Replace(entries)
	return d, nil
}

// Format is a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Encode writes v in format f.
func Encode(v any, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(v, "", "  ")
	case FormatYAML:
		return yaml.Marshal(v)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(v); err != nil {
			return nil, fmt.Errorf("failed to encode toml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// Decode reads data in format f into v.
func Decode(data []byte, f Format, v any) error {
	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, v)
	case FormatYAML:
		err = yaml.Unmarshal(data, v)
	case FormatTOML:
		err = toml.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", f, err)
	}
	return nil
}

// Marshal exports d and encodes the snapshot.
func (d *Dispatcher) Marshal(f Format) ([]byte, error) {
	snap, err := d.Export()
	if err != nil {
		return nil, err
	}
	return Encode(snap, f)
}

// Unmarshal decodes a snapshot and imports it.
func Unmarshal(data []byte, f Format, registry *Registry, opts ...Option) (*Dispatcher, error) {
	var snap Snapshot
	if err := Decode(data, f, &snap); err != nil {
		return nil, err
	}
	return Import(&snap, registry, opts...)
}
