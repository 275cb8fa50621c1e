package haystack

import (
	"github.com/bft-labs/haystack-sidecar/internal/platform"
	"github.com/bft-labs/haystack-sidecar/pkg/log"
)

// Option configures optional behavior of a Manager.
type Option func(*options)

// options holds the optional configuration for a Manager.
type options struct {
	httpClient HTTPClient
	logger     Logger
	spawner    Spawner
	observers  []Observer
	plugins    []Plugin
	platform   *platform.Platform
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithHTTPClient sets the client used for control requests to the sidecar.
// Archive downloads always use a dedicated client.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver subscribes an observer before initialization begins, so it
// sees every transition from the start.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, observer)
	}
}

// WithPlugin registers a plugin. Plugins are initialized in registration
// order by New and shut down in reverse order by Close.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithSpawner replaces the process spawner.
func WithSpawner(spawner Spawner) Option {
	return func(o *options) {
		o.spawner = spawner
	}
}

// WithPlatform overrides the detected OS/architecture.
func WithPlatform(goos, goarch string) Option {
	return func(o *options) {
		p := platform.Resolve(goos, goarch)
		o.platform = &p
	}
}
