// Package feeders provides configuration feeders for colibri.Config and
// module configuration structs: YAML, TOML and JSON files, .env files and
// prefixed environment variables. Every feeder satisfies the golobby
// config.Feeder interface and can be passed to colibri.LoadConfig.
package feeders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
)

// YamlFeeder is a feeder that reads YAML files
type YamlFeeder = feeder.Yaml

// TomlFeeder is a feeder that reads TOML files
type TomlFeeder = feeder.Toml

// JSONFeeder is a feeder that reads JSON files
type JSONFeeder = feeder.Json

// DotEnvFeeder is a feeder that reads .env files into `env` tagged fields
type DotEnvFeeder = feeder.DotEnv

func NewYamlFeeder(path string) YamlFeeder     { return YamlFeeder{Path: path} }
func NewTomlFeeder(path string) TomlFeeder     { return TomlFeeder{Path: path} }
func NewJSONFeeder(path string) JSONFeeder     { return JSONFeeder{Path: path} }
func NewDotEnvFeeder(path string) DotEnvFeeder { return DotEnvFeeder{Path: path} }

// ForFile returns the feeder matching the extension of path.
func ForFile(path string) (config.Feeder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYamlFeeder(path), nil
	case ".toml":
		return NewTomlFeeder(path), nil
	case ".json":
		return NewJSONFeeder(path), nil
	case ".env":
		return NewDotEnvFeeder(path), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, path)
	}
}
