package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode"

	goversion "github.com/hashicorp/go-version"

	"github.com/bft-labs/haystack-sidecar/internal/domain"
	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

// Verdict is the outcome of a compatibility check.
type Verdict int

const (
	// VerdictMissing means no readable version marker exists.
	VerdictMissing Verdict = iota
	// VerdictCompatible means the installed version satisfies the requirement.
	VerdictCompatible
	// VerdictIncompatible means the installed version must be replaced.
	VerdictIncompatible
)

// String returns a human-readable representation of the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictMissing:
		return "Missing"
	case VerdictCompatible:
		return "Compatible"
	case VerdictIncompatible:
		return "Incompatible"
	default:
		return "Unknown"
	}
}

// ParseVersion parses a dotted numeric version, ignoring any leading
// non-numeric prefix such as "v" or "haystack-".
func ParseVersion(s string) (*goversion.Version, error) {
	trimmed := strings.TrimLeftFunc(strings.TrimSpace(s), func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	if trimmed == "" {
		return nil, fmt.Errorf("parse version %q: no numeric component", s)
	}
	v, err := goversion.NewVersion(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", s, err)
	}
	return v, nil
}

// Compatible reports whether installed satisfies required: components are
// compared major, minor, patch and the first unequal one decides.
func Compatible(installed, required string) (bool, error) {
	have, err := ParseVersion(installed)
	if err != nil {
		return false, err
	}
	want, err := ParseVersion(required)
	if err != nil {
		return false, err
	}
	return compareCore(have.Segments64(), want.Segments64()) >= 0, nil
}

// compareCore compares the major, minor and patch components only.
// Prerelease and metadata suffixes do not take part.
func compareCore(a, b []int64) int {
	for i := 0; i < 3; i++ {
		var x, y int64
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		switch {
		case x > y:
			return 1
		case x < y:
			return -1
		}
	}
	return 0
}

// VersionGate decides whether the installed sidecar may be used as is, and
// evicts it when it may not.
type VersionGate struct {
	required   string
	executable string
	markers    ports.MarkerStore
	client     ports.ServerClient
	model      *StatusModel
	logger     ports.Logger

	pollInterval time.Duration
	stopTimeout  time.Duration
}

// NewVersionGate creates a gate for the given required version.
func NewVersionGate(required, executable string, markers ports.MarkerStore, client ports.ServerClient,
	model *StatusModel, logger ports.Logger) *VersionGate {
	return &VersionGate{
		required:     required,
		executable:   executable,
		markers:      markers,
		client:       client,
		model:        model,
		logger:       logger,
		pollInterval: DefaultShutdownPollInterval,
		stopTimeout:  DefaultShutdownTimeout,
	}
}

// SetShutdownTiming overrides the stop poll interval and timeout.
func (g *VersionGate) SetShutdownTiming(interval, timeout time.Duration) {
	if interval > 0 {
		g.pollInterval = interval
	}
	if timeout > 0 {
		g.stopTimeout = timeout
	}
}

// Check reads the version marker and compares it to the required version.
// An absent or unreadable marker is VerdictMissing, never an error. An
// unparseable marker is treated as incompatible.
func (g *VersionGate) Check() (Verdict, string) {
	installed, err := g.markers.ReadVersion()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			g.logger.Warn("version marker unreadable", ports.Err(err))
		}
		return VerdictMissing, ""
	}
	installed = strings.TrimSpace(installed)

	ok, err := Compatible(installed, g.required)
	if err != nil {
		g.logger.Warn("version marker unparseable", ports.String("installed", installed), ports.Err(err))
		return VerdictIncompatible, installed
	}
	if !ok {
		return VerdictIncompatible, installed
	}
	return VerdictCompatible, installed
}

// Evict stops any running instance, deletes the marker files and the
// executable, and moves the install status to not-installed.
func (g *VersionGate) Evict(ctx context.Context, installed string) error {
	g.logger.Info("installed version incompatible, reinstalling",
		ports.String("installed", installed),
		ports.String("required", g.required),
	)

	StopServer(ctx, g.client, g.pollInterval, g.stopTimeout, g.logger)

	if err := g.markers.Remove(); err != nil {
		return fmt.Errorf("remove version marker: %w", err)
	}
	if err := os.Remove(g.executable); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove executable: %w", err)
	}

	reason := fmt.Sprintf("installed %s incompatible with required %s", installed, g.required)
	if err := g.model.SetInstallStatus(domain.InstallNotInstalled, reason); err != nil {
		g.logger.Warn("install status not updated", ports.Err(err))
	}
	return nil
}
