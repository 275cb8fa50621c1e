package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/haystack-sidecar/pkg/haystack"
)

// Config holds CLI configuration for haystackd.
type Config struct {
	InstallDir string
	BundleDir  string
	DataDir    string

	Host string
	Port int

	Version     string
	PrimaryURL  string
	FallbackURL string

	// Local selects whether haystackd installs and starts the sidecar.
	// When false, ServerURL points at a sidecar managed elsewhere.
	Local     bool
	ServerURL string

	HTTPTimeout     time.Duration
	DownloadTimeout time.Duration
	SettleDelay     time.Duration
	RetryDelay      time.Duration
	ShutdownTimeout time.Duration
	StartRetries    int
	MaxRedirects    int

	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	d := haystack.DefaultConfig()
	return Config{
		InstallDir:      d.InstallDir,
		DataDir:         d.DataDir,
		Host:            d.Host,
		Port:            d.Port,
		Version:         d.Version,
		PrimaryURL:      d.PrimaryURL,
		FallbackURL:     d.FallbackURL,
		Local:           true,
		HTTPTimeout:     d.HTTPTimeout,
		DownloadTimeout: d.DownloadTimeout,
		SettleDelay:     d.SettleDelay,
		RetryDelay:      d.RetryDelay,
		ShutdownTimeout: d.ShutdownTimeout,
		StartRetries:    d.StartRetries,
		MaxRedirects:    d.MaxRedirects,
		LogLevel:        "info",
	}
}

// Validate checks the configuration for errors and normalizes URLs.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Local && c.InstallDir == "" {
		return fmt.Errorf("install-dir is required")
	}
	if !c.Local && c.ServerURL == "" {
		return fmt.Errorf("server-url is required when local is false")
	}

	c.PrimaryURL = strings.TrimRight(c.PrimaryURL, "/")
	c.FallbackURL = strings.TrimRight(c.FallbackURL, "/")
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// ManagerConfig converts the CLI configuration to the library Config.
func (c Config) ManagerConfig() haystack.Config {
	return haystack.Config{
		InstallDir:      c.InstallDir,
		BundleDir:       c.BundleDir,
		DataDir:         c.DataDir,
		Host:            c.Host,
		Port:            c.Port,
		Version:         c.Version,
		PrimaryURL:      c.PrimaryURL,
		FallbackURL:     c.FallbackURL,
		ServerURL:       c.ServerURL,
		HTTPTimeout:     c.HTTPTimeout,
		DownloadTimeout: c.DownloadTimeout,
		StartRetries:    c.StartRetries,
		SettleDelay:     c.SettleDelay,
		RetryDelay:      c.RetryDelay,
		ShutdownTimeout: c.ShutdownTimeout,
		MaxRedirects:    c.MaxRedirects,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
