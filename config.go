package colibri

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
	"github.com/golobby/config/v3"
)

const (
	// Struct tag keys
	tagDefault  = "default"
	tagRequired = "required"
)

// Config is the application configuration. Every section can be fed from
// YAML, TOML, JSON files and COLIBRI_ prefixed environment variables (see
// package feeders). Durations are strings such as "15s" in YAML, TOML and
// the environment.
type Config struct {
	Events     EventsConfig     `yaml:"events" toml:"events" json:"events"`
	Routing    RoutingConfig    `yaml:"routing" toml:"routing" json:"routing"`
	HTTP       HTTPConfig       `yaml:"http" toml:"http" json:"http"`
	EventTable EventTableConfig `yaml:"eventtable" toml:"eventtable" json:"eventtable"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" toml:"scheduler" json:"scheduler"`
}

// EventsConfig configures the event dispatcher.
type EventsConfig struct {
	// Separator delimits event name segments.
	Separator string `yaml:"separator" toml:"separator" json:"separator" env:"EVENTS_SEPARATOR" default:"."`
}

// RoutingConfig configures the router.
type RoutingConfig struct {
	CaseInsensitive bool `yaml:"case_insensitive" toml:"case_insensitive" json:"case_insensitive" env:"ROUTING_CASE_INSENSITIVE"`
}

// HTTPConfig configures the httpserver module.
type HTTPConfig struct {
	Address         string        `yaml:"address" toml:"address" json:"address" env:"HTTP_ADDRESS" default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout" env:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout" env:"HTTP_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" toml:"idle_timeout" json:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" json:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// EventTableConfig configures the eventtable module.
type EventTableConfig struct {
	// Path of the bindings file. Empty disables the module.
	Path     string        `yaml:"path" toml:"path" json:"path" env:"EVENTTABLE_PATH"`
	Watch    bool          `yaml:"watch" toml:"watch" json:"watch" env:"EVENTTABLE_WATCH"`
	Debounce time.Duration `yaml:"debounce" toml:"debounce" json:"debounce" env:"EVENTTABLE_DEBOUNCE" default:"250ms"`
}

// SchedulerConfig configures the scheduler module.
type SchedulerConfig struct {
	Jobs []JobConfig `yaml:"jobs" toml:"jobs" json:"jobs"`
}

// JobConfig emits Event on every tick of Schedule, a standard five field
// cron expression or a descriptor such as "@every 1m".
type JobConfig struct {
	Name       string `yaml:"name" toml:"name" json:"name"`
	Schedule   string `yaml:"schedule" toml:"schedule" json:"schedule"`
	Event      string `yaml:"event" toml:"event" json:"event"`
	Cancelable bool   `yaml:"cancelable" toml:"cancelable" json:"cancelable"`
}

// Validate implements ConfigValidator.
func (c *Config) Validate() error {
	if len(c.Events.Separator) != 1 {
		return fmt.Errorf("%w: %q", ErrInvalidSeparator, c.Events.Separator)
	}
	return nil
}

// DefaultConfig returns a Config holding only default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := ProcessConfigDefaults(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// ConfigValidator is implemented by configuration structs with checks
// beyond required fields. Validate is called after defaults are applied.
type ConfigValidator interface {
	Validate() error
}

// LoadConfig feeds cfg from feeders in order, so later feeders override
// earlier ones, then applies defaults and validates it.
//
//	cfg := &colibri.Config{}
//	err := colibri.LoadConfig(cfg,
//		feeders.NewYamlFeeder("config.yaml"),
//		feeders.NewEnvFeeder(),
//	)
func LoadConfig(cfg any, feeders ...config.Feeder) error {
	if cfg == nil {
		return ErrConfigNil
	}
	if err := config.New().AddFeeder(feeders...).AddStruct(cfg).Feed(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigFeederError, err)
	}
	return ValidateConfig(cfg)
}

// ValidateConfig applies default values, checks required fields and, when
// cfg implements ConfigValidator, calls its Validate method.
func ValidateConfig(cfg any) error {
	if err := ProcessConfigDefaults(cfg); err != nil {
		return err
	}
	if err := ValidateConfigRequired(cfg); err != nil {
		return err
	}
	if v, ok := cfg.(ConfigValidator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrConfigValidationFailed, err)
		}
	}
	return nil
}

// ProcessConfigDefaults sets every zero field carrying a `default:"value"`
// tag. Slices take a JSON array:
//
//	type Config struct {
//		Host    string        `default:"localhost"`
//		Timeout time.Duration `default:"5s"`
//		Tags    []string      `default:"[\"a\",\"b\"]"`
//	}
func ProcessConfigDefaults(cfg any) error {
	v, err := structValue(cfg)
	if err != nil {
		return err
	}
	return processStructDefaults(v)
}

func processStructDefaults(v reflect.Value) error {
	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			if err := processStructDefaults(field); err != nil {
				return err
			}
			continue
		}
		if field.Kind() == reflect.Pointer && field.Type().Elem().Kind() == reflect.Struct {
			if !field.IsNil() {
				if err := processStructDefaults(field.Elem()); err != nil {
					return err
				}
			}
			continue
		}

		def, ok := t.Field(i).Tag.Lookup(tagDefault)
		if !ok || !field.IsZero() {
			continue
		}
		if err := setDefaultValue(field, def); err != nil {
			return fmt.Errorf("failed to set default value for %s: %w", t.Field(i).Name, err)
		}
	}
	return nil
}

func setDefaultValue(field reflect.Value, def string) error {
	switch {
	case field.Type() == reflect.TypeFor[time.Duration]():
		d, err := time.ParseDuration(def)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDefaultValueParseError, err)
		}
		field.SetInt(int64(d))
		return nil
	case field.Kind() == reflect.Slice, field.Kind() == reflect.Map:
		ptr := reflect.New(field.Type())
		if err := json.Unmarshal([]byte(def), ptr.Interface()); err != nil {
			return fmt.Errorf("%w: %w", ErrDefaultValueParseError, err)
		}
		field.Set(ptr.Elem())
		return nil
	}

	switch field.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		x, err := cast.FromType(def, field.Type())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDefaultValueParseError, err)
		}
		field.Set(reflect.ValueOf(x).Convert(field.Type()))
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedTypeForDefault, field.Kind())
	}
}

// ValidateConfigRequired checks that no field tagged `required:"true"`
// holds its zero value.
func ValidateConfigRequired(cfg any) error {
	v, err := structValue(cfg)
	if err != nil {
		return err
	}
	var missing []string
	validateRequiredFields(v, "", &missing)
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigRequiredFieldMissing, strings.Join(missing, ", "))
	}
	return nil
}

func validateRequiredFields(v reflect.Value, prefix string, missing *[]string) {
	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		ft := t.Field(i)
		if !field.CanSet() {
			continue
		}
		name := ft.Name
		if prefix != "" {
			name = prefix + "." + name
		}

		required := ft.Tag.Get(tagRequired) == "true"
		switch {
		case field.Kind() == reflect.Struct:
			validateRequiredFields(field, name, missing)
		case field.Kind() == reflect.Pointer && field.Type().Elem().Kind() == reflect.Struct:
			if !field.IsNil() {
				validateRequiredFields(field.Elem(), name, missing)
			} else if required {
				*missing = append(*missing, name)
			}
		case required && field.IsZero():
			*missing = append(*missing, name)
		}
	}
}

func structValue(cfg any) (reflect.Value, error) {
	if cfg == nil {
		return reflect.Value{}, ErrConfigNil
	}
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, ErrConfigNotPointer
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, ErrConfigNotStruct
	}
	return v, nil
}
