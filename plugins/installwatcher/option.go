package installwatcher

import "github.com/bft-labs/haystack-sidecar/pkg/haystack"

// WithInstallWatcher returns a haystack Option that enables install
// directory watching.
//
// Usage:
//
//	m, err := haystack.New(cfg, true,
//	    installwatcher.WithInstallWatcher(installwatcher.Config{
//	        DebounceDelay: time.Second,
//	    }),
//	)
func WithInstallWatcher(cfg Config) haystack.Option {
	return haystack.WithPlugin(New(cfg))
}

// WithDefaultInstallWatcher enables install watching with default settings
// (debounce 500ms).
func WithDefaultInstallWatcher() haystack.Option {
	return WithInstallWatcher(DefaultConfig())
}
