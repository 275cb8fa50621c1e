package ports

// RuntimeConfig is the configuration the sidecar reads at its own startup.
type RuntimeConfig struct {
	DataPath string
	Host     string
	Port     int
}

// MarkerStore handles the install bookkeeping files that live beside the
// executable.
type MarkerStore interface {
	// ReadVersion returns the installed version string.
	// Returns an error wrapping fs.ErrNotExist when no marker exists.
	ReadVersion() (string, error)

	// WriteVersion persists the installed version atomically.
	WriteVersion(version string) error

	// WriteRuntimeConfig persists the sidecar runtime config atomically.
	WriteRuntimeConfig(cfg RuntimeConfig) error

	// Remove deletes the version marker and the runtime config.
	// Missing files are not an error.
	Remove() error
}
