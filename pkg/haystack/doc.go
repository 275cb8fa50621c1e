// Package haystack manages a locally installed haystack search sidecar.
//
// A Manager verifies the installed sidecar, enforces the required version,
// acquires a release archive when needed and starts the sidecar process,
// publishing its progress through two status values and a download
// progress record.
//
// # Basic Usage
//
//	cfg := haystack.DefaultConfig()
//	cfg.Version = "1.4.0"
//
//	m, err := haystack.New(cfg, true, haystack.WithObserver(ui))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	// Initialization already runs in the background; block if needed.
//	if err := m.Initialize(ctx); err != nil {
//	    log.Printf("sidecar not ready: %v", err)
//	}
//
//	body, err := m.Post(ctx, "/api/v1/search", query)
//
// # Acquisition
//
// When the executable is missing or its version.txt is older than
// Config.Version, archives are tried in order: the download cache, the
// bundled archive in Config.BundleDir, Config.PrimaryURL and finally
// Config.FallbackURL. All four failing leaves the install status at
// [InstallError]; call [Manager.Start] to retry.
//
// # Managed Elsewhere
//
// With local set to false the Manager neither installs nor starts
// anything. It reports [StatusRunning] and sends requests to
// Config.ServerURL.
//
// # Observers
//
// Implement [Observer] (embed [BaseObserver] for defaults) and register it
// with [WithObserver] or [Manager.Subscribe]. Callbacks are delivered
// synchronously in the order the status changed.
package haystack
