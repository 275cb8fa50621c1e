package haystack

import (
	"github.com/bft-labs/haystack-sidecar/internal/app"
	"github.com/bft-labs/haystack-sidecar/internal/domain"
	"github.com/bft-labs/haystack-sidecar/internal/ports"
	"github.com/bft-labs/haystack-sidecar/pkg/log"
)

// Status is the overall readiness of the sidecar integration.
type Status = domain.LifecycleStatus

// Lifecycle statuses.
const (
	StatusInitializing = domain.StatusInitializing
	StatusStarting     = domain.StatusStarting
	StatusRunning      = domain.StatusRunning
	StatusUnsupported  = domain.StatusUnsupported
	StatusError        = domain.StatusError
)

// InstallStatus is the state of the on-disk sidecar relative to the
// required version.
type InstallStatus = domain.InstallStatus

// Install statuses.
const (
	InstallInitializing = domain.InstallInitializing
	InstallDownloading  = domain.InstallDownloading
	InstallNotInstalled = domain.InstallNotInstalled
	InstallInstalled    = domain.InstallInstalled
	InstallUnsupported  = domain.InstallUnsupported
	InstallError        = domain.InstallError
)

// Event and progress types delivered to observers.
type (
	DownloadProgress    = domain.DownloadProgress
	StatusChange        = domain.StatusChange
	InstallStatusChange = domain.InstallStatusChange
	ErrorEvent          = domain.ErrorEvent
)

// Observer receives status notifications. Callbacks run synchronously and
// in mutation order; they must return quickly and must not call back into
// the Manager's control operations.
type Observer = app.Observer

// BaseObserver provides no-op implementations of all Observer methods.
// Embed it to implement only the callbacks you need.
type BaseObserver struct{}

func (BaseObserver) OnStatusChange(StatusChange)               {}
func (BaseObserver) OnInstallStatusChange(InstallStatusChange) {}
func (BaseObserver) OnDownloadProgress(DownloadProgress)       {}
func (BaseObserver) OnError(ErrorEvent)                        {}

// Logger is the structured logger accepted by WithLogger.
type Logger = log.Logger

// LogField is a structured log field.
type LogField = log.Field

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// Spawner launches the sidecar process.
type Spawner = ports.Spawner

// Errors returned by the Manager. Check with errors.Is.
var (
	ErrUnsupportedPlatform   = domain.ErrUnsupportedPlatform
	ErrNotRunning            = domain.ErrNotRunning
	ErrAcquisitionFailed     = domain.ErrAcquisitionFailed
	ErrStartRetriesExhausted = domain.ErrStartRetriesExhausted
	ErrInvalidConfig         = domain.ErrInvalidConfig
	ErrClosed                = domain.ErrClosed
)
