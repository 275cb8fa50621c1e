package domain

// LifecycleStatus is the overall readiness of the sidecar as seen by callers.
type LifecycleStatus string

const (
	StatusInitializing LifecycleStatus = "initializing"
	StatusStarting     LifecycleStatus = "starting"
	StatusRunning      LifecycleStatus = "running"
	StatusUnsupported  LifecycleStatus = "unsupported"
	StatusError        LifecycleStatus = "error"
)

// String returns the wire name of the status.
func (s LifecycleStatus) String() string { return string(s) }

// InstallStatus is the state of the on-disk binary relative to what is required.
type InstallStatus string

const (
	InstallInitializing InstallStatus = "initializing"
	InstallDownloading  InstallStatus = "downloading"
	InstallNotInstalled InstallStatus = "not-installed"
	InstallInstalled    InstallStatus = "installed"
	InstallUnsupported  InstallStatus = "unsupported"
	InstallError        InstallStatus = "error"
)

// String returns the wire name of the status.
func (s InstallStatus) String() string { return string(s) }

// lifecycleTransitions lists the statuses reachable from each lifecycle status.
// Unsupported is terminal.
var lifecycleTransitions = map[LifecycleStatus][]LifecycleStatus{
	StatusInitializing: {StatusStarting, StatusRunning, StatusUnsupported, StatusError},
	StatusStarting:     {StatusRunning, StatusInitializing, StatusError},
	StatusRunning:      {StatusInitializing, StatusStarting, StatusError},
	StatusError:        {StatusInitializing, StatusStarting, StatusRunning},
	StatusUnsupported:  nil,
}

var installTransitions = map[InstallStatus][]InstallStatus{
	InstallInitializing: {InstallInstalled, InstallNotInstalled, InstallUnsupported, InstallError},
	InstallNotInstalled: {InstallDownloading, InstallInstalled, InstallError},
	InstallDownloading:  {InstallInstalled, InstallNotInstalled, InstallError},
	InstallInstalled:    {InstallNotInstalled, InstallError},
	InstallError:        {InstallInitializing, InstallNotInstalled, InstallDownloading, InstallInstalled},
	InstallUnsupported:  nil,
}

// CanTransition reports whether the lifecycle may move from s to next.
func (s LifecycleStatus) CanTransition(next LifecycleStatus) bool {
	for _, allowed := range lifecycleTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanTransition reports whether the install status may move from s to next.
func (s InstallStatus) CanTransition(next InstallStatus) bool {
	for _, allowed := range installTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DownloadProgress is a snapshot of one archive transfer. It is replaced
// wholesale on every update.
type DownloadProgress struct {
	SourceURL      string  `json:"url"`
	TotalSize      int64   `json:"totalSize"`
	DownloadedSize int64   `json:"downloadedSize"`
	Percent        float64 `json:"percent"`
}

// SizeKnown reports whether the server announced the transfer size.
// When false, Percent is only meaningful once the transfer completes.
func (p DownloadProgress) SizeKnown() bool {
	return p.TotalSize > 0
}

// StatusChange is emitted when the lifecycle status changes.
type StatusChange struct {
	Old    LifecycleStatus
	New    LifecycleStatus
	Reason string
}

// InstallStatusChange is emitted when the install status changes.
type InstallStatusChange struct {
	Old    InstallStatus
	New    InstallStatus
	Reason string
}

// ErrorEvent is emitted whenever either status axis enters error.
type ErrorEvent struct {
	Message string
}
