// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [ServerClient]: Talks to the sidecar's loopback control endpoints
//   - [Spawner]: Launches the sidecar executable as a detached process
//   - [Downloader]: Streams a remote archive to disk, reporting progress
//   - [Extractor]: Unpacks an install archive into the install directory
//   - [MarkerStore]: Reads and writes the version marker and runtime config
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: transport for sidecar control requests and archive downloads
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with the file
// system, net/http, os/exec and zerolog.
package ports
