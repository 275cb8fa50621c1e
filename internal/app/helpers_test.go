package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/haystack-sidecar/internal/domain"
	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// recordingObserver tracks every event the model emits.
type recordingObserver struct {
	mu       sync.Mutex
	status   []domain.StatusChange
	install  []domain.InstallStatusChange
	progress []domain.DownloadProgress
	errs     []domain.ErrorEvent
}

func (r *recordingObserver) OnStatusChange(ev domain.StatusChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = append(r.status, ev)
}

func (r *recordingObserver) OnInstallStatusChange(ev domain.InstallStatusChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.install = append(r.install, ev)
}

func (r *recordingObserver) OnDownloadProgress(p domain.DownloadProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingObserver) OnError(ev domain.ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, ev)
}

func (r *recordingObserver) Status() []domain.StatusChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.StatusChange{}, r.status...)
}

func (r *recordingObserver) Install() []domain.InstallStatusChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.InstallStatusChange{}, r.install...)
}

func (r *recordingObserver) Progress() []domain.DownloadProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.DownloadProgress{}, r.progress...)
}

func (r *recordingObserver) Errors() []domain.ErrorEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ErrorEvent{}, r.errs...)
}

// fakeServer is a scripted ServerClient.
type fakeServer struct {
	healthy      atomic.Bool
	running      atomic.Bool
	healthCalls  atomic.Int32
	statusCalls  atomic.Int32
	stopRequests atomic.Int32

	// healthyAfterSpawns flips healthy once the spawner has been called
	// this many times. Zero disables it.
	healthyAfterSpawns int32
	spawner            *fakeSpawner
}

func (f *fakeServer) Healthy(ctx context.Context) bool {
	f.healthCalls.Add(1)
	if f.healthyAfterSpawns > 0 && f.spawner != nil && f.spawner.calls.Load() >= f.healthyAfterSpawns {
		return true
	}
	return f.healthy.Load()
}

func (f *fakeServer) RequestStop(ctx context.Context) bool {
	f.stopRequests.Add(1)
	return true
}

func (f *fakeServer) Running(ctx context.Context) bool {
	f.statusCalls.Add(1)
	return f.running.Load()
}

func (f *fakeServer) Post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	return nil, errors.New("not implemented")
}

// fakeSpawner counts spawn calls.
type fakeSpawner struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSpawner) Spawn(ctx context.Context, binary string, args []string, dir string) error {
	f.calls.Add(1)
	return f.err
}

// memoryMarkers is an in-memory MarkerStore.
type memoryMarkers struct {
	mu      sync.Mutex
	version string
	present bool
	runtime *ports.RuntimeConfig
	removed int
}

func (m *memoryMarkers) ReadVersion() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		return "", os.ErrNotExist
	}
	return m.version, nil
}

func (m *memoryMarkers) WriteVersion(v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version, m.present = v, true
	return nil
}

func (m *memoryMarkers) WriteRuntimeConfig(cfg ports.RuntimeConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runtime = &cfg
	return nil
}

func (m *memoryMarkers) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version, m.present, m.runtime = "", false, nil
	m.removed++
	return nil
}

// fakeDownloader serves scripted results per URL and writes a payload on success.
type fakeDownloader struct {
	mu      sync.Mutex
	fail    map[string]error
	payload []byte
	urls    []string
}

func (f *fakeDownloader) Download(ctx context.Context, url, dst string, obs ports.TransferObserver) error {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	err := f.fail[url]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	obs.Begin(url, int64(len(f.payload)))
	if err := os.WriteFile(dst, f.payload, 0o644); err != nil {
		return err
	}
	obs.Advance(int64(len(f.payload)))
	obs.Complete(int64(len(f.payload)))
	return nil
}

func (f *fakeDownloader) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.urls...)
}

// fakeExtractor writes the executable into destDir unless the archive is listed as bad.
type fakeExtractor struct {
	mu        sync.Mutex
	exe       string
	bad       map[string]bool
	extracted []string
}

func (f *fakeExtractor) Extract(archivePath, destDir string) error {
	f.mu.Lock()
	f.extracted = append(f.extracted, archivePath)
	bad := f.bad[archivePath]
	f.mu.Unlock()
	if bad {
		return errors.New("zip: not a valid zip file")
	}
	return os.WriteFile(filepath.Join(destDir, f.exe), []byte("#!/bin/sh\n"), 0o644)
}

func (f *fakeExtractor) Extracted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.extracted...)
}
