package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bft-labs/haystack-sidecar/internal/domain"
	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

// Default supervisor tuning.
const (
	DefaultMaxStartRetries = 10
	DefaultSettleDelay     = 1 * time.Second
	DefaultRetryDelay      = 3 * time.Second
)

// ServerArgs is the invocation that starts the sidecar's server.
var ServerArgs = []string{"server", "start"}

// errNotReady marks a start attempt whose health re-probe failed.
var errNotReady = errors.New("server not ready")

// SupervisorConfig describes how the sidecar is launched and retried.
type SupervisorConfig struct {
	Binary string
	Args   []string
	Dir    string

	// MaxRetries is the ceiling on consecutive failed start attempts.
	MaxRetries int

	// SettleDelay is waited after each spawn before re-probing health.
	SettleDelay time.Duration

	// RetryDelay is waited between failed attempts.
	RetryDelay time.Duration
}

func (c *SupervisorConfig) setDefaults() {
	if len(c.Args) == 0 {
		c.Args = ServerArgs
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxStartRetries
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
}

// Supervisor starts the sidecar and waits for it to report healthy.
type Supervisor struct {
	cfg     SupervisorConfig
	client  ports.ServerClient
	spawner ports.Spawner
	model   *StatusModel
	logger  ports.Logger

	inFlight atomic.Bool

	mu      sync.Mutex
	retries int
}

// NewSupervisor wires a supervisor.
func NewSupervisor(cfg SupervisorConfig, client ports.ServerClient, spawner ports.Spawner,
	model *StatusModel, logger ports.Logger) *Supervisor {
	cfg.setDefaults()
	return &Supervisor{
		cfg:     cfg,
		client:  client,
		spawner: spawner,
		model:   model,
		logger:  logger,
	}
}

// Retries returns the current consecutive failed-attempt count.
func (s *Supervisor) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// Start brings the sidecar to running. An instance that already answers the
// health probe is adopted without spawning. Otherwise each attempt spawns
// once, waits SettleDelay and re-probes; failed attempts are re-queued after
// RetryDelay until MaxRetries is exceeded, at which point the status becomes
// error and the counter resets.
func (s *Supervisor) Start(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return domain.ErrStartInFlight
	}
	defer s.inFlight.Store(false)

	if err := s.model.SetStatus(domain.StatusStarting, "starting server"); err != nil {
		return err
	}

	schedule := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.RetryDelay), uint64(s.cfg.MaxRetries)),
		ctx,
	)
	err := backoff.RetryNotify(func() error { return s.attempt(ctx) }, schedule,
		func(err error, next time.Duration) {
			s.logger.Debug("server not ready, retrying",
				ports.Int("attempt", s.Retries()),
				ports.Duration("in", next))
		})
	if err == nil {
		return nil
	}

	s.resetRetries()
	if errors.Is(err, errNotReady) {
		err = domain.ErrStartRetriesExhausted
	}
	reason := fmt.Sprintf("failed to start server: %v", err)
	s.logger.Error("server start failed", ports.Err(err))
	if serr := s.model.SetStatus(domain.StatusError, reason); serr != nil {
		s.logger.Warn("status not updated", ports.Err(serr))
	}
	return err
}

// attempt is one probe-spawn-settle-probe cycle.
func (s *Supervisor) attempt(ctx context.Context) error {
	if s.client.Healthy(ctx) {
		s.markRunning("server healthy")
		return nil
	}

	n := s.incrementRetries()
	if n > s.cfg.MaxRetries {
		return backoff.Permanent(domain.ErrStartRetriesExhausted)
	}

	s.logger.Info("spawning server",
		ports.String("binary", s.cfg.Binary),
		ports.Int("attempt", n))
	if err := s.spawner.Spawn(ctx, s.cfg.Binary, s.cfg.Args, s.cfg.Dir); err != nil {
		s.logger.Warn("spawn failed", ports.Err(err))
	}

	select {
	case <-ctx.Done():
		return backoff.Permanent(ctx.Err())
	case <-time.After(s.cfg.SettleDelay):
	}

	if s.client.Healthy(ctx) {
		s.markRunning(fmt.Sprintf("server healthy after %d attempt(s)", n))
		return nil
	}
	return errNotReady
}

func (s *Supervisor) markRunning(reason string) {
	s.resetRetries()
	if err := s.model.SetStatus(domain.StatusRunning, reason); err != nil {
		s.logger.Warn("status not updated", ports.Err(err))
	}
}

func (s *Supervisor) incrementRetries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries++
	return s.retries
}

func (s *Supervisor) resetRetries() {
	s.mu.Lock()
	s.retries = 0
	s.mu.Unlock()
}
