package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/haystack-sidecar/internal/domain"
	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

const (
	testPrimary  = "https://primary.test/1.2.3/haystack-linux-amd64-v1.2.3.zip"
	testFallback = "https://fallback.test/1.2.3/haystack-linux-amd64-v1.2.3.zip"
)

type installFixture struct {
	cfg        InstallConfig
	model      *StatusModel
	obs        *recordingObserver
	markers    *memoryMarkers
	server     *fakeServer
	downloader *fakeDownloader
	extractor  *fakeExtractor
	installer  *Installer
}

func newInstallFixture(t *testing.T) *installFixture {
	t.Helper()
	root := t.TempDir()

	f := &installFixture{
		cfg: InstallConfig{
			InstallDir:  filepath.Join(root, "install"),
			Executable:  "haystack",
			ArchiveName: "haystack-linux-amd64-v1.2.3.zip",
			BundleDir:   filepath.Join(root, "bundle"),
			PrimaryURL:  testPrimary,
			FallbackURL: testFallback,
			Version:     "1.2.3",
			Runtime:     ports.RuntimeConfig{DataPath: filepath.Join(root, "data"), Host: "127.0.0.1", Port: 13135},
			Windows:     runtime.GOOS == "windows",
		},
		model:      NewStatusModel(mockLogger{}),
		obs:        &recordingObserver{},
		markers:    &memoryMarkers{},
		server:     &fakeServer{},
		downloader: &fakeDownloader{fail: map[string]error{}, payload: make([]byte, MinArchiveSize)},
		extractor:  &fakeExtractor{exe: "haystack", bad: map[string]bool{}},
	}
	f.model.Subscribe(f.obs)

	require.NoError(t, os.MkdirAll(f.cfg.BundleDir, 0o755))
	gate := NewVersionGate(f.cfg.Version, f.cfg.ExecutablePath(), f.markers, f.server, f.model, mockLogger{})
	gate.SetShutdownTiming(time.Millisecond, 20*time.Millisecond)
	f.installer = NewInstaller(f.cfg, gate, f.downloader, f.extractor, f.markers, f.model, mockLogger{})
	require.NoError(t, f.installer.PrepareDirs())
	return f
}

func writeSized(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestInstaller_UndersizedCacheFallsThroughToBundle(t *testing.T) {
	f := newInstallFixture(t)
	writeSized(t, f.cfg.CachedArchivePath(), 512)
	bundled := filepath.Join(f.cfg.BundleDir, f.cfg.ArchiveName)
	writeSized(t, bundled, MinArchiveSize)

	require.NoError(t, f.installer.Ensure(context.Background()))

	_, err := os.Stat(f.cfg.CachedArchivePath())
	assert.True(t, os.IsNotExist(err), "undersized cache should be deleted")
	assert.Equal(t, []string{bundled}, f.extractor.Extracted())
	assert.Empty(t, f.downloader.URLs())
	assert.Equal(t, domain.InstallInstalled, f.model.InstallStatus())

	v, err := f.markers.ReadVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v)
	require.NotNil(t, f.markers.runtime)
	assert.Equal(t, 13135, f.markers.runtime.Port)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(f.cfg.ExecutablePath())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestInstaller_UndersizedBundleIsKept(t *testing.T) {
	f := newInstallFixture(t)
	bundled := filepath.Join(f.cfg.BundleDir, f.cfg.ArchiveName)
	writeSized(t, bundled, 100)

	require.NoError(t, f.installer.Ensure(context.Background()))

	_, err := os.Stat(bundled)
	assert.NoError(t, err, "bundled archive must never be deleted")
	assert.Equal(t, []string{testPrimary}, f.downloader.URLs())
	assert.Equal(t, []string{f.cfg.CachedArchivePath()}, f.extractor.Extracted())
}

func TestInstaller_ValidCacheSkipsNetwork(t *testing.T) {
	f := newInstallFixture(t)
	writeSized(t, f.cfg.CachedArchivePath(), MinArchiveSize)

	require.NoError(t, f.installer.Ensure(context.Background()))

	assert.Empty(t, f.downloader.URLs())
	assert.Equal(t, []string{f.cfg.CachedArchivePath()}, f.extractor.Extracted())
}

func TestInstaller_BrokenCacheIsDeleted(t *testing.T) {
	f := newInstallFixture(t)
	writeSized(t, f.cfg.CachedArchivePath(), MinArchiveSize)
	f.extractor.bad[f.cfg.CachedArchivePath()] = true
	f.downloader.fail[testPrimary] = errors.New("connection refused")
	f.downloader.fail[testFallback] = errors.New("connection refused")

	err := f.installer.Ensure(context.Background())
	require.Error(t, err)

	_, statErr := os.Stat(f.cfg.CachedArchivePath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestInstaller_FallbackAfterPrimaryFails(t *testing.T) {
	f := newInstallFixture(t)
	f.downloader.fail[testPrimary] = errors.New("unexpected HTTP status: 404")

	require.NoError(t, f.installer.Ensure(context.Background()))

	assert.Equal(t, []string{testPrimary, testFallback}, f.downloader.URLs())
	assert.Equal(t, domain.InstallInstalled, f.model.InstallStatus())

	progress := f.obs.Progress()
	require.NotEmpty(t, progress)
	assert.Equal(t, testFallback, progress[len(progress)-1].SourceURL)
	assert.Equal(t, float64(100), progress[len(progress)-1].Percent)
}

func TestInstaller_AllSourcesFail(t *testing.T) {
	f := newInstallFixture(t)
	f.downloader.fail[testPrimary] = errors.New("dial tcp: timeout")
	f.downloader.fail[testFallback] = errors.New("dial tcp: timeout")

	err := f.installer.Ensure(context.Background())
	require.ErrorIs(t, err, domain.ErrAcquisitionFailed)

	assert.Equal(t, domain.InstallError, f.model.InstallStatus())
	assert.Len(t, f.obs.Errors(), 1)

	var seen []domain.InstallStatus
	for _, ev := range f.obs.Install() {
		seen = append(seen, ev.New)
	}
	assert.Equal(t, []domain.InstallStatus{
		domain.InstallNotInstalled, domain.InstallDownloading, domain.InstallError,
	}, seen)
}

func TestInstaller_CompatibleInstallIsKept(t *testing.T) {
	f := newInstallFixture(t)
	writeSized(t, f.cfg.ExecutablePath(), 10)
	require.NoError(t, f.markers.WriteVersion("1.3.0"))

	require.NoError(t, f.installer.Ensure(context.Background()))

	assert.Empty(t, f.extractor.Extracted())
	assert.Empty(t, f.downloader.URLs())
	assert.Equal(t, domain.InstallInstalled, f.model.InstallStatus())
	assert.Zero(t, f.server.stopRequests.Load())
}

func TestInstaller_MissingMarkerReinstalls(t *testing.T) {
	f := newInstallFixture(t)
	writeSized(t, f.cfg.ExecutablePath(), 10)

	require.NoError(t, f.installer.Ensure(context.Background()))

	assert.Zero(t, f.server.stopRequests.Load(), "missing marker is not an incompatibility")
	assert.Equal(t, []string{testPrimary}, f.downloader.URLs())
	assert.Equal(t, domain.InstallInstalled, f.model.InstallStatus())
}

func TestInstaller_IncompatibleInstallIsReplaced(t *testing.T) {
	f := newInstallFixture(t)
	writeSized(t, f.cfg.ExecutablePath(), 10)
	require.NoError(t, f.markers.WriteVersion("v1.2.0"))

	require.NoError(t, f.installer.Ensure(context.Background()))

	assert.EqualValues(t, 1, f.server.stopRequests.Load())
	assert.Equal(t, 1, f.markers.removed)
	v, err := f.markers.ReadVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v)
	assert.Equal(t, domain.InstallInstalled, f.model.InstallStatus())
}
