package haystack

import "context"

// Plugin is an optional extension bound to a Manager's lifetime.
type Plugin interface {
	// Name returns the plugin identifier used in logs.
	Name() string

	// Initialize starts the plugin. ctx is cancelled when the Manager closes.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown stops the plugin and releases its resources.
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to plugins on initialization.
type PluginConfig struct {
	// InstallDir is the sidecar install directory.
	InstallDir string

	// Executable is the sidecar executable file name inside InstallDir.
	Executable string

	// ArchiveName is the release archive file name for the required version.
	ArchiveName string

	// Local reports whether this manager installs and starts the sidecar.
	Local bool

	Logger Logger

	// Retry requests a new initialization pass, as Manager.Start does.
	Retry func() error

	// Status and InstallStatus return the current status values.
	Status        func() Status
	InstallStatus func() InstallStatus

	// Subscribe registers an observer on the manager's status model.
	Subscribe func(Observer) (unsubscribe func())
}
