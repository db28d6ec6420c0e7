package chainz

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Options configures a Registry.
type Options struct {
	// Environment names the deployment environment ("development",
	// "staging", "production"). It is carried into registration logs.
	Environment string `koanf:"environment"`
	// EnableLogging turns registration logging on or off.
	EnableLogging bool `koanf:"enable_logging"`
}

// DefaultOptions returns the options used when nothing is configured:
// a development environment with registration logging enabled.
func DefaultOptions() Options {
	return Options{
		Environment:   "development",
		EnableLogging: true,
	}
}

// LoadOptions assembles Options from an optional YAML file and CHAINZ_*
// environment variables. Environment variables override the file; a double
// underscore in a variable name maps to a nesting dot (CHAINZ_A__B => a.b).
// A missing file is not an error - env vars and defaults cover it. An empty
// path skips the file entirely.
func LoadOptions(path string) (Options, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !os.IsNotExist(err) {
				return Options{}, err
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("CHAINZ_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CHAINZ_")), "__", ".")
	}), nil); err != nil {
		return Options{}, err
	}

	// Default values
	if !k.Exists("environment") {
		k.Set("environment", "development")
	}
	if !k.Exists("enable_logging") {
		k.Set("enable_logging", true)
	}

	var opts Options
	if err := k.Unmarshal("", &opts); err != nil {
		return Options{}, err
	}

	return opts, nil
}
