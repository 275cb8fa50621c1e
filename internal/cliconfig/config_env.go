package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (HAYSTACK_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("install-dir", os.Getenv("HAYSTACK_INSTALL_DIR"), &cfg.InstallDir)
	s.setString("bundle-dir", os.Getenv("HAYSTACK_BUNDLE_DIR"), &cfg.BundleDir)
	s.setString("data-dir", os.Getenv("HAYSTACK_DATA_DIR"), &cfg.DataDir)
	s.setString("host", os.Getenv("HAYSTACK_HOST"), &cfg.Host)
	s.setString("version", os.Getenv("HAYSTACK_VERSION"), &cfg.Version)
	s.setString("primary-url", os.Getenv("HAYSTACK_PRIMARY_URL"), &cfg.PrimaryURL)
	s.setString("fallback-url", os.Getenv("HAYSTACK_FALLBACK_URL"), &cfg.FallbackURL)
	s.setString("server-url", os.Getenv("HAYSTACK_SERVER_URL"), &cfg.ServerURL)
	s.setString("log-level", os.Getenv("HAYSTACK_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", os.Getenv("HAYSTACK_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("download-timeout", os.Getenv("HAYSTACK_DOWNLOAD_TIMEOUT"), &cfg.DownloadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("settle-delay", os.Getenv("HAYSTACK_SETTLE_DELAY"), &cfg.SettleDelay); err != nil {
		return err
	}
	if err := s.setDuration("retry-delay", os.Getenv("HAYSTACK_RETRY_DELAY"), &cfg.RetryDelay); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("HAYSTACK_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("port", os.Getenv("HAYSTACK_PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setIntFromString("start-retries", os.Getenv("HAYSTACK_START_RETRIES"), &cfg.StartRetries); err != nil {
		return err
	}
	if err := s.setIntFromString("max-redirects", os.Getenv("HAYSTACK_MAX_REDIRECTS"), &cfg.MaxRedirects); err != nil {
		return err
	}

	s.setBoolFromString("local", os.Getenv("HAYSTACK_LOCAL"), &cfg.Local)

	return nil
}
