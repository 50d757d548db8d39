// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"maps"
	"os"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	return ParseEnvWithOverrides(target, nil)
}

// ParseEnvWithOverrides loads configuration from environment variables, with
// overrides taking precedence over the process environment.
func ParseEnvWithOverrides(target any, overrides map[string]string) error {
	opts := env.Options{}
	if len(overrides) > 0 {
		environ := env.ToMap(os.Environ())
		maps.Copy(environ, overrides)
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
