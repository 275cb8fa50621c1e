package app

import (
	"fmt"
	"sync"

	"github.com/bft-labs/haystack-sidecar/internal/domain"
	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

// Observer receives status notifications. Callbacks run synchronously, one
// at a time and in mutation order. They may read the model but must not
// mutate it from inside the callback.
type Observer interface {
	OnStatusChange(ev domain.StatusChange)
	OnInstallStatusChange(ev domain.InstallStatusChange)
	OnDownloadProgress(p domain.DownloadProgress)
	OnError(ev domain.ErrorEvent)
}

// StatusModel holds the lifecycle status, the install status and the current
// download progress. Setters compare before writing; a set to the current
// value is a no-op and emits nothing.
type StatusModel struct {
	// notifyMu is held across a mutation and its notifications so observers
	// see events in the order the fields changed.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	status    domain.LifecycleStatus
	install   domain.InstallStatus
	progress  domain.DownloadProgress
	observers map[int]Observer
	nextID    int

	logger ports.Logger
}

// NewStatusModel creates a model in the initializing state on both axes.
func NewStatusModel(logger ports.Logger) *StatusModel {
	return &StatusModel{
		status:    domain.StatusInitializing,
		install:   domain.InstallInitializing,
		observers: make(map[int]Observer),
		logger:    logger,
	}
}

// Status returns the current lifecycle status.
func (m *StatusModel) Status() domain.LifecycleStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// InstallStatus returns the current install status.
func (m *StatusModel) InstallStatus() domain.InstallStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.install
}

// Progress returns the latest download progress record.
func (m *StatusModel) Progress() domain.DownloadProgress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress
}

// Subscribe registers an observer and returns a function that removes it.
func (m *StatusModel) Subscribe(o Observer) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = o
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

// SetStatus moves the lifecycle to next. Entering error also emits an error
// event carrying reason.
func (m *StatusModel) SetStatus(next domain.LifecycleStatus, reason string) error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	prev := m.status
	if prev == next {
		m.mu.Unlock()
		return nil
	}
	if !prev.CanTransition(next) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, prev, next)
	}
	if next == domain.StatusRunning && m.install != domain.InstallInstalled {
		install := m.install
		m.mu.Unlock()
		return fmt.Errorf("%w: running requires installed, install status is %s",
			domain.ErrInvalidTransition, install)
	}
	m.status = next
	observers := m.snapshot()
	m.mu.Unlock()

	m.logger.Info("status transition",
		ports.String("from", prev.String()),
		ports.String("to", next.String()),
		ports.String("reason", reason),
	)

	ev := domain.StatusChange{Old: prev, New: next, Reason: reason}
	for _, o := range observers {
		o.OnStatusChange(ev)
	}
	if next == domain.StatusError {
		emitError(observers, reason)
	}
	return nil
}

// SetInstallStatus moves the install status to next. Entering error also
// emits an error event carrying reason.
func (m *StatusModel) SetInstallStatus(next domain.InstallStatus, reason string) error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	prev := m.install
	if prev == next {
		m.mu.Unlock()
		return nil
	}
	if !prev.CanTransition(next) {
		m.mu.Unlock()
		return fmt.Errorf("%w: install %s -> %s", domain.ErrInvalidTransition, prev, next)
	}
	m.install = next
	observers := m.snapshot()
	m.mu.Unlock()

	m.logger.Info("install status transition",
		ports.String("from", prev.String()),
		ports.String("to", next.String()),
		ports.String("reason", reason),
	)

	ev := domain.InstallStatusChange{Old: prev, New: next, Reason: reason}
	for _, o := range observers {
		o.OnInstallStatusChange(ev)
	}
	if next == domain.InstallError {
		emitError(observers, reason)
	}
	return nil
}

// MarkUnsupported moves both axes to unsupported in a single step.
func (m *StatusModel) MarkUnsupported(reason string) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	prevInstall, prevStatus := m.install, m.status
	m.install = domain.InstallUnsupported
	m.status = domain.StatusUnsupported
	observers := m.snapshot()
	m.mu.Unlock()

	m.logger.Warn("platform unsupported", ports.String("reason", reason))

	if prevInstall != domain.InstallUnsupported {
		ev := domain.InstallStatusChange{Old: prevInstall, New: domain.InstallUnsupported, Reason: reason}
		for _, o := range observers {
			o.OnInstallStatusChange(ev)
		}
	}
	if prevStatus != domain.StatusUnsupported {
		ev := domain.StatusChange{Old: prevStatus, New: domain.StatusUnsupported, Reason: reason}
		for _, o := range observers {
			o.OnStatusChange(ev)
		}
	}
}

// SetProgress replaces the progress record and notifies observers.
func (m *StatusModel) SetProgress(p domain.DownloadProgress) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.progress = p
	observers := m.snapshot()
	m.mu.Unlock()

	for _, o := range observers {
		o.OnDownloadProgress(p)
	}
}

// snapshot copies the observer list. Caller must hold mu.
func (m *StatusModel) snapshot() []Observer {
	out := make([]Observer, 0, len(m.observers))
	for id := 0; id < m.nextID; id++ {
		if o, ok := m.observers[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

func emitError(observers []Observer, message string) {
	ev := domain.ErrorEvent{Message: message}
	for _, o := range observers {
		o.OnError(ev)
	}
}
