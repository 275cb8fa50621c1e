package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/bft-labs/haystack-sidecar/internal/domain"
	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

// MinArchiveSize is the smallest archive accepted from the download cache or
// the bundle. Anything smaller is a truncated download or an error page.
const MinArchiveSize = 1 << 20

// executableMode is applied after extraction on non-Windows targets.
const executableMode os.FileMode = 0o755

// InstallConfig describes where the sidecar lives and where archives come from.
type InstallConfig struct {
	// InstallDir holds the executable, version.txt and config.yaml.
	InstallDir string

	// Executable is the executable file name inside InstallDir.
	Executable string

	// ArchiveName is the release archive file name for the required version.
	ArchiveName string

	// BundleDir is the read-only directory that may ship ArchiveName.
	// Empty disables the bundled source.
	BundleDir string

	// PrimaryURL and FallbackURL are the full archive URLs.
	PrimaryURL  string
	FallbackURL string

	// Version is the required version written to the marker after install.
	Version string

	// Runtime is written to config.yaml after install.
	Runtime ports.RuntimeConfig

	// Windows disables the permission fix-up.
	Windows bool
}

// ExecutablePath returns the absolute path of the sidecar executable.
func (c InstallConfig) ExecutablePath() string {
	return filepath.Join(c.InstallDir, c.Executable)
}

// DownloadDir returns the writable download cache directory.
func (c InstallConfig) DownloadDir() string {
	return filepath.Join(c.InstallDir, "download")
}

// CachedArchivePath returns the path of the cached archive.
func (c InstallConfig) CachedArchivePath() string {
	return filepath.Join(c.DownloadDir(), c.ArchiveName)
}

// archiveSource is one step of the acquisition pipeline.
type archiveSource struct {
	name string
	// fetch returns a local archive path. removable marks archives the
	// installer owns and may delete if they turn out to be broken.
	fetch func(ctx context.Context) (path string, removable bool, err error)
}

// Installer guarantees a present, version-compatible sidecar executable.
type Installer struct {
	cfg        InstallConfig
	gate       *VersionGate
	downloader ports.Downloader
	extractor  ports.Extractor
	markers    ports.MarkerStore
	model      *StatusModel
	progress   *progressTracker
	logger     ports.Logger
}

// NewInstaller wires an installer.
func NewInstaller(cfg InstallConfig, gate *VersionGate, downloader ports.Downloader, extractor ports.Extractor,
	markers ports.MarkerStore, model *StatusModel, logger ports.Logger) *Installer {
	return &Installer{
		cfg:        cfg,
		gate:       gate,
		downloader: downloader,
		extractor:  extractor,
		markers:    markers,
		model:      model,
		progress:   newProgressTracker(model),
		logger:     logger,
	}
}

// PrepareDirs creates the install and download directories.
func (i *Installer) PrepareDirs() error {
	if err := os.MkdirAll(i.cfg.DownloadDir(), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	return nil
}

// Ensure runs presence check, compatibility gate and, if needed, acquisition.
// On return with a nil error the install status is installed.
func (i *Installer) Ensure(ctx context.Context) error {
	if fileExists(i.cfg.ExecutablePath()) {
		verdict, installed := i.gate.Check()
		switch verdict {
		case VerdictCompatible:
			i.setInstall(domain.InstallInstalled, "installed version "+installed+" is compatible")
			return nil
		case VerdictIncompatible:
			if err := i.gate.Evict(ctx, installed); err != nil {
				i.setInstall(domain.InstallError, err.Error())
				return err
			}
		default:
			i.setInstall(domain.InstallNotInstalled, "version marker missing")
		}
	} else {
		i.setInstall(domain.InstallNotInstalled, "executable missing")
	}

	return i.Acquire(ctx)
}

// Acquire walks the archive sources in order until one installs.
func (i *Installer) Acquire(ctx context.Context) error {
	i.setInstall(domain.InstallDownloading, "acquiring "+i.cfg.ArchiveName)

	var merr *multierror.Error
	for _, src := range i.sources() {
		if err := ctx.Err(); err != nil {
			merr = multierror.Append(merr, err)
			break
		}

		path, removable, err := src.fetch(ctx)
		if err != nil {
			i.logger.Debug("archive source unavailable",
				ports.String("source", src.name), ports.Err(err))
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", src.name, err))
			continue
		}

		if err := i.install(path); err != nil {
			i.logger.Warn("archive install failed",
				ports.String("source", src.name),
				ports.String("archive", path),
				ports.Err(err))
			if removable {
				removeQuietly(path, i.logger)
			}
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", src.name, err))
			continue
		}

		i.logger.Info("sidecar installed",
			ports.String("source", src.name),
			ports.String("version", i.cfg.Version),
			ports.String("dir", i.cfg.InstallDir))
		i.setInstall(domain.InstallInstalled, "installed from "+src.name)
		return nil
	}

	err := fmt.Errorf("%w: %s", domain.ErrAcquisitionFailed, flatten(merr))
	i.logger.Error("sidecar acquisition failed", ports.Err(err))
	i.setInstall(domain.InstallError, err.Error())
	return err
}

func (i *Installer) sources() []archiveSource {
	return []archiveSource{
		{name: "cache", fetch: i.fromCache},
		{name: "bundle", fetch: i.fromBundle},
		{name: "primary", fetch: i.fromURL(i.cfg.PrimaryURL)},
		{name: "fallback", fetch: i.fromURL(i.cfg.FallbackURL)},
	}
}

func (i *Installer) fromCache(ctx context.Context) (string, bool, error) {
	path := i.cfg.CachedArchivePath()
	if err := checkArchiveSize(path); err != nil {
		if errors.Is(err, domain.ErrArchiveTooSmall) {
			removeQuietly(path, i.logger)
		}
		return "", false, err
	}
	return path, true, nil
}

func (i *Installer) fromBundle(ctx context.Context) (string, bool, error) {
	if i.cfg.BundleDir == "" {
		return "", false, errors.New("no bundle directory configured")
	}
	path := filepath.Join(i.cfg.BundleDir, i.cfg.ArchiveName)
	if err := checkArchiveSize(path); err != nil {
		return "", false, err
	}
	return path, false, nil
}

func (i *Installer) fromURL(url string) func(ctx context.Context) (string, bool, error) {
	return func(ctx context.Context) (string, bool, error) {
		if url == "" {
			return "", false, errors.New("no url configured")
		}
		dst := i.cfg.CachedArchivePath()
		if err := i.downloader.Download(ctx, url, dst, i.progress); err != nil {
			return "", false, err
		}
		return dst, true, nil
	}
}

// install extracts an archive, fixes permissions and writes the bookkeeping files.
func (i *Installer) install(archive string) error {
	if err := i.extractor.Extract(archive, i.cfg.InstallDir); err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	exe := i.cfg.ExecutablePath()
	if !fileExists(exe) {
		return fmt.Errorf("archive did not contain %s", i.cfg.Executable)
	}
	if !i.cfg.Windows {
		if err := os.Chmod(exe, executableMode); err != nil {
			return fmt.Errorf("chmod executable: %w", err)
		}
	}

	if err := i.markers.WriteVersion(i.cfg.Version); err != nil {
		return fmt.Errorf("write version marker: %w", err)
	}
	if err := i.markers.WriteRuntimeConfig(i.cfg.Runtime); err != nil {
		return fmt.Errorf("write runtime config: %w", err)
	}
	return nil
}

func (i *Installer) setInstall(s domain.InstallStatus, reason string) {
	if err := i.model.SetInstallStatus(s, reason); err != nil {
		i.logger.Warn("install status not updated", ports.Err(err))
	}
}

func checkArchiveSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() < MinArchiveSize {
		return fmt.Errorf("%w: %s is %d bytes", domain.ErrArchiveTooSmall, path, info.Size())
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func removeQuietly(path string, logger ports.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to remove archive", ports.String("path", path), ports.Err(err))
	}
}

func flatten(merr *multierror.Error) string {
	if merr == nil || len(merr.Errors) == 0 {
		return "no sources"
	}
	parts := make([]string, len(merr.Errors))
	for idx, err := range merr.Errors {
		parts[idx] = err.Error()
	}
	return strings.Join(parts, "; ")
}
