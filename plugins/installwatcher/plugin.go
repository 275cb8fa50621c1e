// Package installwatcher watches the sidecar download cache and asks the
// manager to retry initialization once an operator repairs a failed
// install by placing the release archive there.
package installwatcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/haystack-sidecar/internal/app"
	"github.com/bft-labs/haystack-sidecar/pkg/haystack"
	"github.com/bft-labs/haystack-sidecar/pkg/log"
)

const versionFile = "version.txt"

// Plugin implements install directory watching.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration

	installDir  string
	executable  string
	archiveName string
	logger      haystack.Logger
	cfg         haystack.PluginConfig

	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
	debounce    *time.Timer
}

// Config holds configuration options for the install watcher plugin.
type Config struct {
	// DebounceDelay is the quiet period after the last change before a
	// retry is considered.
	// Default: 500 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{DebounceDelay: 500 * time.Millisecond}
}

// New creates a new install watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 500 * time.Millisecond
	}
	return &Plugin{debounceDelay: cfg.DebounceDelay}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "installwatcher"
}

// Initialize starts watching the install directory and its download cache.
// It does nothing for a manager whose sidecar is managed elsewhere.
func (p *Plugin) Initialize(ctx context.Context, cfg haystack.PluginConfig) error {
	p.mu.Lock()
	p.cfg = cfg
	p.installDir = cfg.InstallDir
	p.executable = cfg.Executable
	p.archiveName = cfg.ArchiveName
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.mu.Unlock()

	if !cfg.Local || p.installDir == "" || p.archiveName == "" ||
		cfg.Retry == nil || cfg.Status == nil || cfg.InstallStatus == nil {
		p.logger.Info("install watcher disabled")
		return nil
	}

	downloadDir := filepath.Join(p.installDir, "download")
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range []string{p.installDir, downloadDir} {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	if cfg.Subscribe != nil {
		p.unsubscribe = cfg.Subscribe(&statusObserver{plugin: p, ctx: watchCtx})
	}

	p.logger.Info("install watcher started", log.String("dir", p.installDir))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the watcher and any pending debounced retry.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			p.handle(ctx, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("install watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) handle(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".tmp") || event.Op == fsnotify.Chmod {
		return
	}

	switch p.cfg.Status() {
	case haystack.StatusError:
		if name == p.archiveName {
			p.debounceRetry(ctx)
		}
	case haystack.StatusRunning:
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && (name == p.executable || name == versionFile) {
			p.logger.Warn("sidecar install modified while running",
				log.String("file", name),
				log.String("op", event.Op.String()))
		}
	}
}

// debounceRetry schedules a readiness check after the debounce delay,
// replacing any pending one.
func (p *Plugin) debounceRetry(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil || !p.readyToRetry() {
			return
		}
		p.logger.Info("archive placed in download cache, retrying initialization",
			log.String("archive", p.archiveName))
		if err := p.cfg.Retry(); err != nil {
			p.logger.Warn("retry not started", log.Err(err))
		}
	})
}

// readyToRetry reports whether acquisition failed and a plausible archive
// now sits in the download cache. A failed pass deletes a broken cached
// archive, so a bad archive triggers at most one retry.
func (p *Plugin) readyToRetry() bool {
	if p.cfg.Status() != haystack.StatusError || p.cfg.InstallStatus() != haystack.InstallError {
		return false
	}
	info, err := os.Stat(filepath.Join(p.installDir, "download", p.archiveName))
	return err == nil && !info.IsDir() && info.Size() >= app.MinArchiveSize
}

// statusObserver re-checks the cache when a pass ends in error, covering
// archives placed while that pass was still running.
type statusObserver struct {
	haystack.BaseObserver
	plugin *Plugin
	ctx    context.Context
}

func (o *statusObserver) OnStatusChange(ev haystack.StatusChange) {
	if ev.New == haystack.StatusError {
		o.plugin.debounceRetry(o.ctx)
	}
}
