package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

// DefaultEnvPrefix prefixes the variables read by NewEnvFeeder.
const DefaultEnvPrefix = "COLIBRI"

// EnvFeeder reads environment variables into fields tagged `env:"NAME"`,
// looking up PREFIX_NAME. Nested structs are walked with the same prefix.
// Unset or empty variables leave the field untouched.
//
//	type HTTPConfig struct {
//		Address string        `env:"HTTP_ADDRESS"`
//		Timeout time.Duration `env:"HTTP_TIMEOUT"`
//	}
//
// With the default prefix, Address is read from COLIBRI_HTTP_ADDRESS.
type EnvFeeder struct {
	Prefix string
}

// NewEnvFeeder creates an EnvFeeder using DefaultEnvPrefix.
func NewEnvFeeder() EnvFeeder {
	return EnvFeeder{Prefix: DefaultEnvPrefix}
}

// NewPrefixedEnvFeeder creates an EnvFeeder using prefix. An empty prefix
// reads the tag names unchanged.
func NewPrefixedEnvFeeder(prefix string) EnvFeeder {
	return EnvFeeder{Prefix: prefix}
}

// Feed populates structure, which must be a pointer to a struct.
func (f EnvFeeder) Feed(structure any) error {
	v := reflect.ValueOf(structure)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrEnvInvalidStructure
	}
	return f.fillStruct(v.Elem())
}

func (f EnvFeeder) fillStruct(rv reflect.Value) error {
	rt := rv.Type()
	for i := range rv.NumField() {
		field := rv.Field(i)
		ft := rt.Field(i)
		if !ft.IsExported() {
			continue
		}

		switch {
		case field.Kind() == reflect.Struct && field.Type() != reflect.TypeFor[time.Time]():
			if err := f.fillStruct(field); err != nil {
				return fmt.Errorf("error in field '%s': %w", ft.Name, err)
			}
			continue
		case field.Kind() == reflect.Pointer && field.Type().Elem().Kind() == reflect.Struct:
			if !field.IsNil() {
				if err := f.fillStruct(field.Elem()); err != nil {
					return fmt.Errorf("error in field '%s': %w", ft.Name, err)
				}
			}
			continue
		}

		tag, ok := ft.Tag.Lookup("env")
		if !ok || tag == "" {
			continue
		}
		value := os.Getenv(f.name(tag))
		if value == "" {
			continue
		}
		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("error in field '%s': %w", ft.Name, err)
		}
	}
	return nil
}

func (f EnvFeeder) name(tag string) string {
	name := strings.ToUpper(tag)
	if f.Prefix == "" {
		return name
	}
	return strings.ToUpper(strings.TrimSuffix(f.Prefix, "_")) + "_" + name
}

// setFieldValue converts and sets a field value. Durations are parsed
// with time.ParseDuration, everything else with cast.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return ErrEnvFieldCannotBeSet
	}
	if field.Type() == reflect.TypeFor[time.Duration]() {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
		}
		field.SetInt(int64(d))
		return nil
	}

	converted, err := cast.FromType(value, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	cv := reflect.ValueOf(converted)
	if !cv.Type().ConvertibleTo(field.Type()) {
		return fmt.Errorf("cannot convert value to type %v", field.Type())
	}
	field.Set(cv.Convert(field.Type()))
	return nil
}
