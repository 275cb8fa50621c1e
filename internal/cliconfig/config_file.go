package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	InstallDir      string `toml:"install_dir"`
	BundleDir       string `toml:"bundle_dir"`
	DataDir         string `toml:"data_dir"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Version         string `toml:"version"`
	PrimaryURL      string `toml:"primary_url"`
	FallbackURL     string `toml:"fallback_url"`
	Local           *bool  `toml:"local"`
	ServerURL       string `toml:"server_url"`
	HTTPTimeout     string `toml:"http_timeout"`
	DownloadTimeout string `toml:"download_timeout"`
	SettleDelay     string `toml:"settle_delay"`
	RetryDelay      string `toml:"retry_delay"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	StartRetries    int    `toml:"start_retries"`
	MaxRedirects    int    `toml:"max_redirects"`
	LogLevel        string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.haystack/manager.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".haystack", "manager.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("install-dir", fc.InstallDir, &cfg.InstallDir)
	s.setString("bundle-dir", fc.BundleDir, &cfg.BundleDir)
	s.setString("data-dir", fc.DataDir, &cfg.DataDir)
	s.setString("host", fc.Host, &cfg.Host)
	s.setString("version", fc.Version, &cfg.Version)
	s.setString("primary-url", fc.PrimaryURL, &cfg.PrimaryURL)
	s.setString("fallback-url", fc.FallbackURL, &cfg.FallbackURL)
	s.setString("server-url", fc.ServerURL, &cfg.ServerURL)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"timeout", fc.HTTPTimeout, &cfg.HTTPTimeout},
		{"download-timeout", fc.DownloadTimeout, &cfg.DownloadTimeout},
		{"settle-delay", fc.SettleDelay, &cfg.SettleDelay},
		{"retry-delay", fc.RetryDelay, &cfg.RetryDelay},
		{"shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("start-retries", fc.StartRetries, &cfg.StartRetries)
	s.setInt("max-redirects", fc.MaxRedirects, &cfg.MaxRedirects)

	s.setBool("local", fc.Local, &cfg.Local)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
