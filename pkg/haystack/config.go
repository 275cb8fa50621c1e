package haystack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	httpAdapter "github.com/bft-labs/haystack-sidecar/internal/adapters/http"
	"github.com/bft-labs/haystack-sidecar/internal/app"
	"github.com/bft-labs/haystack-sidecar/internal/domain"
)

// Defaults for Config fields left zero.
const (
	DefaultVersion     = "1.0.0"
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 13135
	DefaultPrimaryURL  = "https://releases.haystack.dev/sidecar"
	DefaultFallbackURL = "https://mirror.haystack.dev/sidecar"

	DefaultHTTPTimeout     = 10 * time.Second
	DefaultDownloadTimeout = 10 * time.Minute
)

// Config configures a Manager. Use DefaultConfig() or call SetDefaults()
// to fill unset fields.
type Config struct {
	// InstallDir holds the sidecar executable, version.txt, config.yaml and
	// the download cache. Default: ~/.haystack/bin
	InstallDir string

	// BundleDir is a read-only directory that may ship the release archive.
	// Empty disables the bundled source.
	BundleDir string

	// DataDir is the sidecar's persistent data directory, written to
	// config.yaml. Default: ~/.haystack/data
	DataDir string

	// Host and Port are where the local sidecar listens.
	Host string
	Port int

	// Version is the minimum sidecar version this manager works with. It is
	// also the version downloaded when an install is needed.
	Version string

	// PrimaryURL and FallbackURL are release bases. Archives are fetched from
	// {base}/{version}/{archiveName}.
	PrimaryURL  string
	FallbackURL string

	// ServerURL is the sidecar base URL when the sidecar is managed
	// elsewhere. Ignored in local mode.
	ServerURL string

	// HTTPTimeout bounds control requests to the sidecar.
	HTTPTimeout time.Duration

	// DownloadTimeout bounds a single archive download.
	DownloadTimeout time.Duration

	// StartRetries is the ceiling on consecutive failed start attempts.
	StartRetries int

	// SettleDelay is waited after each spawn before probing health.
	SettleDelay time.Duration

	// RetryDelay is waited between failed start attempts.
	RetryDelay time.Duration

	// ShutdownTimeout and ShutdownPollInterval bound the wait for a stopped
	// sidecar to go away.
	ShutdownTimeout      time.Duration
	ShutdownPollInterval time.Duration

	// MaxRedirects is the redirect hop limit for downloads.
	MaxRedirects int
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	if c.InstallDir == "" || c.DataDir == "" {
		home := homeDir()
		if c.InstallDir == "" {
			c.InstallDir = filepath.Join(home, ".haystack", "bin")
		}
		if c.DataDir == "" {
			c.DataDir = filepath.Join(home, ".haystack", "data")
		}
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.PrimaryURL == "" {
		c.PrimaryURL = DefaultPrimaryURL
	}
	if c.FallbackURL == "" {
		c.FallbackURL = DefaultFallbackURL
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.DownloadTimeout == 0 {
		c.DownloadTimeout = DefaultDownloadTimeout
	}
	if c.StartRetries == 0 {
		c.StartRetries = app.DefaultMaxStartRetries
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = app.DefaultSettleDelay
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = app.DefaultRetryDelay
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = app.DefaultShutdownTimeout
	}
	if c.ShutdownPollInterval == 0 {
		c.ShutdownPollInterval = app.DefaultShutdownPollInterval
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = httpAdapter.DefaultMaxRedirects
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := app.ParseVersion(c.Version); err != nil {
		return fmt.Errorf("%w: version %q: %v", domain.ErrInvalidConfig, c.Version, err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", domain.ErrInvalidConfig, c.Port)
	}
	for name, d := range map[string]time.Duration{
		"http timeout":           c.HTTPTimeout,
		"download timeout":       c.DownloadTimeout,
		"settle delay":           c.SettleDelay,
		"retry delay":            c.RetryDelay,
		"shutdown timeout":       c.ShutdownTimeout,
		"shutdown poll interval": c.ShutdownPollInterval,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidConfig, name)
		}
	}
	if c.StartRetries < 0 || c.MaxRedirects < 0 {
		return fmt.Errorf("%w: retry limits must not be negative", domain.ErrInvalidConfig)
	}
	if c.InstallDir == "" {
		return fmt.Errorf("%w: install dir is required", domain.ErrInvalidConfig)
	}
	if c.PrimaryURL == "" && c.FallbackURL == "" && c.BundleDir == "" {
		return fmt.Errorf("%w: no archive source configured", domain.ErrInvalidConfig)
	}
	return nil
}

// LocalURL returns the base URL of the sidecar started by this manager.
func (c Config) LocalURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// ArchiveURL joins a release base with the version and archive name.
func ArchiveURL(base, version, archive string) string {
	if base == "" {
		return ""
	}
	version = strings.TrimPrefix(strings.TrimPrefix(version, "v"), "V")
	return strings.TrimRight(base, "/") + "/" + version + "/" + archive
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return "."
}
