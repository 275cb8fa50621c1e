package app

import (
	"context"
	"time"

	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

// Default shutdown-wait tuning.
const (
	DefaultShutdownTimeout      = 20 * time.Second
	DefaultShutdownPollInterval = 200 * time.Millisecond
)

// WaitForShutdown polls the status endpoint every interval until a probe
// fails or timeout elapses, whichever comes first. Probes share the wait's
// deadline. Non-positive timings fall back to the defaults. It never returns
// an error; the caller proceeds either way.
func WaitForShutdown(ctx context.Context, client ports.ServerClient, interval, timeout time.Duration, logger ports.Logger) {
	if interval <= 0 {
		interval = DefaultShutdownPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for waitCtx.Err() == nil {
		running := client.Running(waitCtx)
		if waitCtx.Err() != nil {
			break
		}
		if !running {
			logger.Debug("server stopped", ports.Duration("waited", time.Since(start)))
			return
		}
		select {
		case <-waitCtx.Done():
		case <-ticker.C:
		}
	}
	if ctx.Err() == nil {
		logger.Warn("server still reports running after shutdown wait",
			ports.Duration("timeout", timeout))
	}
}

// StopServer asks a running sidecar to stop and waits for it to go away.
func StopServer(ctx context.Context, client ports.ServerClient, interval, timeout time.Duration, logger ports.Logger) {
	if !client.RequestStop(ctx) {
		logger.Debug("stop request not accepted, assuming server is not running")
	}
	WaitForShutdown(ctx, client, interval, timeout, logger)
}
