// Package haystack is the root facade of the haystack sidecar manager.
//
// Example usage:
//
//	cfg := hs.DefaultConfig()
//	cfg.Version = "1.4.0"
//	m, err := hs.New(cfg, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//	if err := m.Initialize(context.Background()); err != nil {
//	    log.Printf("sidecar not ready: %v", err)
//	}
//
// See package pkg/haystack for the full API.
package haystack

import (
	"github.com/rs/zerolog"

	hs "github.com/bft-labs/haystack-sidecar/pkg/haystack"
	"github.com/bft-labs/haystack-sidecar/pkg/log"
)

// Config configures a Manager.
type Config = hs.Config

// Manager owns the sidecar's install and process lifecycle.
type Manager = hs.Manager

// Option configures optional behavior of a Manager.
type Option = hs.Option

// New creates a Manager and triggers initialization in the background.
func New(cfg Config, local bool, opts ...Option) (*Manager, error) {
	return hs.New(cfg, local, opts...)
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() Config {
	return hs.DefaultConfig()
}

// WithZerolog returns an Option that logs through zerolog at the given level.
func WithZerolog(level zerolog.Level) Option {
	return hs.WithLogger(log.NewZerologAdapter(level))
}
