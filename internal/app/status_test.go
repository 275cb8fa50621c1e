package app

import (
	"errors"
	"testing"

	"github.com/bft-labs/haystack-sidecar/internal/domain"
)

func TestNewStatusModel(t *testing.T) {
	m := NewStatusModel(mockLogger{})

	if m.Status() != domain.StatusInitializing {
		t.Errorf("initial status = %v, want initializing", m.Status())
	}
	if m.InstallStatus() != domain.InstallInitializing {
		t.Errorf("initial install status = %v, want initializing", m.InstallStatus())
	}
	if m.Progress() != (domain.DownloadProgress{}) {
		t.Errorf("initial progress = %+v, want zero", m.Progress())
	}
}

func TestStatusModel_OneEventPerTransition(t *testing.T) {
	m := NewStatusModel(mockLogger{})
	obs := &recordingObserver{}
	m.Subscribe(obs)

	steps := []domain.InstallStatus{
		domain.InstallNotInstalled,
		domain.InstallNotInstalled,
		domain.InstallDownloading,
		domain.InstallDownloading,
		domain.InstallDownloading,
		domain.InstallInstalled,
		domain.InstallInstalled,
	}
	for _, s := range steps {
		if err := m.SetInstallStatus(s, "test"); err != nil {
			t.Fatalf("SetInstallStatus(%s): %v", s, err)
		}
	}

	for _, s := range []domain.LifecycleStatus{
		domain.StatusStarting, domain.StatusStarting, domain.StatusRunning, domain.StatusRunning,
	} {
		if err := m.SetStatus(s, "test"); err != nil {
			t.Fatalf("SetStatus(%s): %v", s, err)
		}
	}

	install := obs.Install()
	wantInstall := []domain.InstallStatusChange{
		{Old: domain.InstallInitializing, New: domain.InstallNotInstalled, Reason: "test"},
		{Old: domain.InstallNotInstalled, New: domain.InstallDownloading, Reason: "test"},
		{Old: domain.InstallDownloading, New: domain.InstallInstalled, Reason: "test"},
	}
	if len(install) != len(wantInstall) {
		t.Fatalf("install events = %d, want %d: %+v", len(install), len(wantInstall), install)
	}
	for i := range wantInstall {
		if install[i] != wantInstall[i] {
			t.Errorf("install event[%d] = %+v, want %+v", i, install[i], wantInstall[i])
		}
	}

	status := obs.Status()
	if len(status) != 2 {
		t.Fatalf("status events = %d, want 2: %+v", len(status), status)
	}
	if status[1].Old != domain.StatusStarting || status[1].New != domain.StatusRunning {
		t.Errorf("second status event = %+v", status[1])
	}
	if len(obs.Errors()) != 0 {
		t.Errorf("unexpected error events: %+v", obs.Errors())
	}
}

func TestStatusModel_ErrorEmitsErrorEvent(t *testing.T) {
	m := NewStatusModel(mockLogger{})
	obs := &recordingObserver{}
	m.Subscribe(obs)

	if err := m.SetInstallStatus(domain.InstallError, "download failed"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetStatus(domain.StatusError, "start failed"); err != nil {
		t.Fatal(err)
	}
	// Repeated error set is a no-op.
	if err := m.SetStatus(domain.StatusError, "start failed"); err != nil {
		t.Fatal(err)
	}

	errs := obs.Errors()
	if len(errs) != 2 {
		t.Fatalf("error events = %d, want 2", len(errs))
	}
	if errs[0].Message != "download failed" || errs[1].Message != "start failed" {
		t.Errorf("error messages = %+v", errs)
	}
}

func TestStatusModel_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *StatusModel)
		run   func(m *StatusModel) error
	}{
		{
			name:  "running without installed",
			setup: func(m *StatusModel) {},
			run: func(m *StatusModel) error {
				return m.SetStatus(domain.StatusRunning, "test")
			},
		},
		{
			name:  "leaving unsupported",
			setup: func(m *StatusModel) { m.MarkUnsupported("test") },
			run: func(m *StatusModel) error {
				return m.SetStatus(domain.StatusInitializing, "test")
			},
		},
		{
			name: "installed straight to downloading",
			setup: func(m *StatusModel) {
				_ = m.SetInstallStatus(domain.InstallInstalled, "test")
			},
			run: func(m *StatusModel) error {
				return m.SetInstallStatus(domain.InstallDownloading, "test")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewStatusModel(mockLogger{})
			tt.setup(m)
			obs := &recordingObserver{}
			m.Subscribe(obs)

			err := tt.run(m)
			if !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
			if len(obs.Status())+len(obs.Install()) != 0 {
				t.Error("rejected transition must not emit")
			}
		})
	}
}

func TestStatusModel_MarkUnsupported(t *testing.T) {
	m := NewStatusModel(mockLogger{})
	obs := &recordingObserver{}
	m.Subscribe(obs)

	m.MarkUnsupported("freebsd-amd64")
	m.MarkUnsupported("freebsd-amd64")

	if m.Status() != domain.StatusUnsupported || m.InstallStatus() != domain.InstallUnsupported {
		t.Fatalf("status = %s/%s", m.Status(), m.InstallStatus())
	}
	if len(obs.Status()) != 1 || len(obs.Install()) != 1 {
		t.Errorf("events = %d status, %d install; want 1 each", len(obs.Status()), len(obs.Install()))
	}
}

func TestStatusModel_Unsubscribe(t *testing.T) {
	m := NewStatusModel(mockLogger{})
	obs := &recordingObserver{}
	unsubscribe := m.Subscribe(obs)

	_ = m.SetInstallStatus(domain.InstallNotInstalled, "test")
	unsubscribe()
	unsubscribe()
	_ = m.SetInstallStatus(domain.InstallDownloading, "test")

	if got := len(obs.Install()); got != 1 {
		t.Errorf("events after unsubscribe = %d, want 1", got)
	}
}

func TestStatusModel_ProgressReplacedWholesale(t *testing.T) {
	m := NewStatusModel(mockLogger{})
	obs := &recordingObserver{}
	m.Subscribe(obs)

	m.SetProgress(domain.DownloadProgress{SourceURL: "a", TotalSize: 10, DownloadedSize: 5, Percent: 50})
	m.SetProgress(domain.DownloadProgress{SourceURL: "b"})

	if got := m.Progress(); got != (domain.DownloadProgress{SourceURL: "b"}) {
		t.Errorf("progress = %+v", got)
	}
	if len(obs.Progress()) != 2 {
		t.Errorf("progress events = %d, want 2", len(obs.Progress()))
	}
}
