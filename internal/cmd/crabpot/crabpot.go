// Package crabpot parses crab pot service flags and launches the service.
package crabpot

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/crabpot/internal/platform/cmd"
	server "github.com/louisbranch/crabpot/internal/services/crabpot/app"
)

// Config holds crab pot command configuration.
type Config struct {
	Port int `env:"CRABPOT_PORT" envDefault:"8095"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The crab pot gRPC server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the crab pot gRPC API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCrabPot, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
