// Package platform maps the running OS and CPU architecture to a sidecar
// build target.
package platform

import (
	"fmt"
	"runtime"
)

// binaryBase is the sidecar executable name without extension.
const binaryBase = "haystack"

// supported lists the targets a sidecar build is published for.
var supported = map[string]bool{
	"darwin-amd64":  true,
	"darwin-arm64":  true,
	"linux-amd64":   true,
	"linux-arm64":   true,
	"windows-amd64": true,
	"windows-arm64": true,
}

// Platform describes the build target for one OS/architecture pair.
type Platform struct {
	OS         string
	Arch       string
	Key        string
	Supported  bool
	Executable string
}

// Resolve maps an OS/architecture pair to its target.
func Resolve(goos, goarch string) Platform {
	key := goos + "-" + goarch
	exe := binaryBase
	if goos == "windows" {
		exe += ".exe"
	}
	return Platform{
		OS:         goos,
		Arch:       goarch,
		Key:        key,
		Supported:  supported[key],
		Executable: exe,
	}
}

// Current resolves the platform this process runs on.
func Current() Platform {
	return Resolve(runtime.GOOS, runtime.GOARCH)
}

// IsWindows reports whether the target is a Windows build.
func (p Platform) IsWindows() bool {
	return p.OS == "windows"
}

// ArchiveName returns the release archive name for the given version, e.g.
// haystack-linux-amd64-v1.2.3.zip. A leading "v" on version is not doubled.
func (p Platform) ArchiveName(version string) string {
	if len(version) > 0 && (version[0] == 'v' || version[0] == 'V') {
		version = version[1:]
	}
	return fmt.Sprintf("%s-%s-v%s.zip", binaryBase, p.Key, version)
}
