// Package proc launches the sidecar as a detached child process.
package proc

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

// Spawner implements ports.Spawner. Spawned processes are detached from
// the manager's session and never waited on.
type Spawner struct {
	logger ports.Logger
}

// NewSpawner creates a Spawner.
func NewSpawner(logger ports.Logger) *Spawner {
	return &Spawner{logger: logger}
}

// Spawn starts binary in dir and releases it.
func (s *Spawner) Spawn(ctx context.Context, binary string, args []string, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// exec.Command rather than CommandContext: the sidecar must outlive
	// the initialization context.
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.SysProcAttr = detachedAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		s.logger.Warn("failed to release sidecar process",
			ports.Int("pid", pid), ports.Err(err))
	}

	s.logger.Info("sidecar process spawned",
		ports.String("binary", binary),
		ports.Int("pid", pid))
	return nil
}
