// Package pxflood provides a client engine for flooding Pixelflut-style
// pixel walls with a compiled command stream.
//
// Example usage:
//
//	cfg := pxflood.DefaultConfig()
//	cfg.APIURL = "http://wall.example/client-api/"
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := pxflood.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
package pxflood

import (
	"context"

	"github.com/flutlabs/pxflood/internal/agent"
	"github.com/rs/zerolog"
)

// Config holds the configuration for the flood engine.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = agent.Config

// Run starts the flood engine with the given configuration. It blocks until
// the context is cancelled or an unrecoverable error occurs (no connection
// to the wall can be established, or every established one is lost).
// Use cfg.Once = true to run a single report cycle and exit.
func Run(ctx context.Context, cfg Config) error {
	return agent.Run(ctx, cfg, nil)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return agent.DefaultConfig()
}

// Logger returns the package-level zerolog logger used by the engine.
func Logger() zerolog.Logger {
	return agent.Logger()
}

// DefaultAPIURL is the default command-and-control endpoint.
const DefaultAPIURL = agent.DefaultAPIURL
