// Package domain contains the core types of the haystack sidecar manager.
//
// It has no dependencies on infrastructure concerns (HTTP, file system,
// logging) and holds only values and the rules attached to them.
//
// # Types
//
//   - [LifecycleStatus]: Overall readiness of the sidecar integration
//   - [InstallStatus]: State of the on-disk binary relative to the required version
//   - [DownloadProgress]: Snapshot of the current archive transfer
//   - [StatusChange], [InstallStatusChange], [ErrorEvent]: Observer payloads
package domain
