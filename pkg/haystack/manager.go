package haystack

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	"github.com/bft-labs/haystack-sidecar/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/haystack-sidecar/internal/adapters/http"
	"github.com/bft-labs/haystack-sidecar/internal/adapters/proc"
	"github.com/bft-labs/haystack-sidecar/internal/app"
	"github.com/bft-labs/haystack-sidecar/internal/domain"
	"github.com/bft-labs/haystack-sidecar/internal/platform"
	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

// initKey is the singleflight key shared by every initialization trigger.
const initKey = "initialize"

// Manager owns the sidecar's install and process lifecycle. Construct it
// with New; initialization starts immediately in the background.
type Manager struct {
	config   Config
	local    bool
	platform platform.Platform
	logger   ports.Logger

	model      *app.StatusModel
	client     *httpAdapter.ServerClient
	installer  *app.Installer
	supervisor *app.Supervisor

	plugins []Plugin
	group   singleflight.Group

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Manager and triggers initialization in the background.
// local selects whether this manager installs and starts the sidecar
// itself (true) or talks to one managed elsewhere at Config.ServerURL.
// Returns an error only for invalid configuration or a failing plugin.
func New(cfg Config, local bool, opts ...Option) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if o.spawner == nil {
		o.spawner = proc.NewSpawner(o.logger)
	}
	plat := platform.Current()
	if o.platform != nil {
		plat = *o.platform
	}

	logger := o.logger
	model := app.NewStatusModel(logger)
	for _, obs := range o.observers {
		model.Subscribe(obs)
	}

	serverURL := cfg.LocalURL()
	if !local && cfg.ServerURL != "" {
		serverURL = cfg.ServerURL
	}
	client := httpAdapter.NewServerClient(serverURL, o.httpClient, logger)

	markers := fs.NewMarkerStore(cfg.InstallDir)
	archive := plat.ArchiveName(cfg.Version)
	installCfg := app.InstallConfig{
		InstallDir:  cfg.InstallDir,
		Executable:  plat.Executable,
		ArchiveName: archive,
		BundleDir:   cfg.BundleDir,
		PrimaryURL:  ArchiveURL(cfg.PrimaryURL, cfg.Version, archive),
		FallbackURL: ArchiveURL(cfg.FallbackURL, cfg.Version, archive),
		Version:     cfg.Version,
		Runtime: ports.RuntimeConfig{
			DataPath: cfg.DataDir,
			Host:     cfg.Host,
			Port:     cfg.Port,
		},
		Windows: plat.IsWindows(),
	}

	gate := app.NewVersionGate(cfg.Version, installCfg.ExecutablePath(), markers, client, model, logger)
	gate.SetShutdownTiming(cfg.ShutdownPollInterval, cfg.ShutdownTimeout)

	downloader := httpAdapter.NewDownloader(
		httpAdapter.NewDownloadClient(cfg.DownloadTimeout), cfg.MaxRedirects, logger)
	installer := app.NewInstaller(installCfg, gate, downloader, fs.NewZipExtractor(), markers, model, logger)

	supervisor := app.NewSupervisor(app.SupervisorConfig{
		Binary:      installCfg.ExecutablePath(),
		Dir:         cfg.InstallDir,
		MaxRetries:  cfg.StartRetries,
		SettleDelay: cfg.SettleDelay,
		RetryDelay:  cfg.RetryDelay,
	}, client, o.spawner, model, logger)

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:     cfg,
		local:      local,
		platform:   plat,
		logger:     logger,
		model:      model,
		client:     client,
		installer:  installer,
		supervisor: supervisor,
		plugins:    o.plugins,
		ctx:        ctx,
		cancel:     cancel,
	}

	pluginCfg := PluginConfig{
		InstallDir:    cfg.InstallDir,
		Executable:    plat.Executable,
		ArchiveName:   archive,
		Local:         local,
		Logger:        logger,
		Retry:         m.Start,
		Status:        m.Status,
		InstallStatus: m.InstallStatus,
		Subscribe:     m.Subscribe,
	}
	for i, p := range m.plugins {
		if err := p.Initialize(ctx, pluginCfg); err != nil {
			logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			_ = m.shutdownPlugins(m.plugins[:i])
			cancel()
			return nil, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	if err := m.Start(); err != nil {
		logger.Debug("initialization not started", ports.Err(err))
	}
	return m, nil
}

// Start requests an initialization pass in the background and returns
// immediately. It is the manual retry entry point after an error; while a
// pass is already in flight the request joins it.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.ErrClosed
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.Initialize(m.ctx)
	}()
	return nil
}

// Initialize runs the initialization sequence and blocks until it ends or
// ctx is done. Concurrent callers share a single pass. Failures are also
// reflected in the status values and error events.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.isClosed() {
		return domain.ErrClosed
	}
	ch := m.group.DoChan(initKey, func() (interface{}, error) {
		return nil, m.initialize(m.ctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// initialize is the sequence: platform check, managed-elsewhere pass
// through, directory setup, presence and compatibility check, acquisition,
// and process start.
func (m *Manager) initialize(ctx context.Context) error {
	if !m.platform.Supported {
		m.model.MarkUnsupported("no sidecar build for " + m.platform.Key)
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, m.platform.Key)
	}

	if !m.local {
		m.setInstall(domain.InstallInstalled, "managed elsewhere")
		m.setStatus(domain.StatusRunning, "managed elsewhere at "+m.client.BaseURL())
		return nil
	}

	switch m.model.Status() {
	case domain.StatusRunning:
		return nil
	case domain.StatusError:
		m.setStatus(domain.StatusInitializing, "retry requested")
	}

	if err := m.installer.PrepareDirs(); err != nil {
		m.setInstall(domain.InstallError, err.Error())
		m.setStatus(domain.StatusError, err.Error())
		return err
	}

	if err := m.installer.Ensure(ctx); err != nil {
		m.setStatus(domain.StatusError, err.Error())
		return err
	}

	return m.supervisor.Start(ctx)
}

// Post sends payload as JSON to path on the sidecar and returns the
// response body. It fails with ErrNotRunning unless the status is running.
func (m *Manager) Post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	if m.model.Status() != domain.StatusRunning {
		return nil, domain.ErrNotRunning
	}
	return m.client.Post(ctx, path, payload)
}

// StopForUpgrade asks the sidecar to stop, waits for it to go away and
// moves the lifecycle status back to initializing. A following Start
// reinstalls or restarts as needed.
func (m *Manager) StopForUpgrade(ctx context.Context) error {
	if m.model.Status() != domain.StatusRunning {
		return domain.ErrNotRunning
	}
	app.StopServer(ctx, m.client, m.config.ShutdownPollInterval, m.config.ShutdownTimeout, m.logger)
	return m.model.SetStatus(domain.StatusInitializing, "stopped for upgrade")
}

// Status returns the current lifecycle status.
func (m *Manager) Status() Status {
	return m.model.Status()
}

// InstallStatus returns the current install status.
func (m *Manager) InstallStatus() InstallStatus {
	return m.model.InstallStatus()
}

// DownloadProgress returns the latest download progress record.
func (m *Manager) DownloadProgress() DownloadProgress {
	return m.model.Progress()
}

// Subscribe registers an observer and returns a function that removes it.
func (m *Manager) Subscribe(o Observer) (unsubscribe func()) {
	return m.model.Subscribe(o)
}

// ServerURL returns the base URL requests are sent to.
func (m *Manager) ServerURL() string {
	return m.client.BaseURL()
}

// PlatformKey returns the resolved {os}-{arch} key.
func (m *Manager) PlatformKey() string {
	return m.platform.Key
}

// Close cancels background work, waits for it and shuts down plugins in
// reverse order. A spawned sidecar keeps running.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()

	return m.shutdownPlugins(m.plugins)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) shutdownPlugins(plugins []Plugin) error {
	var merr *multierror.Error
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			m.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			merr = multierror.Append(merr, fmt.Errorf("plugin %s: %w", p.Name(), err))
			continue
		}
		m.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
	}
	return merr.ErrorOrNil()
}

func (m *Manager) setStatus(s domain.LifecycleStatus, reason string) {
	if err := m.model.SetStatus(s, reason); err != nil {
		m.logger.Warn("status not updated", ports.Err(err))
	}
}

func (m *Manager) setInstall(s domain.InstallStatus, reason string) {
	if err := m.model.SetInstallStatus(s, reason); err != nil {
		m.logger.Warn("install status not updated", ports.Err(err))
	}
}
