package trustkit

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MonitorConfig configures a session monitor.
type MonitorConfig struct {
	// PollInterval is the delay between validity polls. Default: 1 minute.
	PollInterval time.Duration

	// OnSessionInvalid fires at most once per invalidity episode, after the
	// cache has been cleared and before logout. It fires regardless of which
	// component detected the invalidity: poll results, current-device
	// revocation and logout-all all route through it. Optional.
	OnSessionInvalid func(reason string)

	// OnError receives transport and validation errors from polls. Such
	// errors cause no state change; only an authorization failure is treated
	// as invalidity. Optional.
	OnError func(err error)
}

// Monitor periodically polls session validity and drives the forced-logout
// path when the session goes invalid. Obtain one from StartMonitor; it is a
// cancellable handle.
type Monitor struct {
	c   *Coordinator
	cfg MonitorConfig

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	busy   atomic.Bool
	subID  int
}

type validityResponse struct {
	Valid bool `json:"valid"`
}

// StartMonitor begins polling session validity in the background.
func (c *Coordinator) StartMonitor(cfg MonitorConfig) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		c:      c,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if cfg.OnSessionInvalid != nil {
		m.subID = c.subscribeInvalid(cfg.OnSessionInvalid)
	}
	go m.loop()

	c.log.Info("session monitor started",
		zap.Duration("poll_interval", cfg.PollInterval))
	return m
}

// Stop cancels the monitor. No polls start and no callbacks fire after Stop
// returns; an in-flight poll's result is discarded.
func (m *Monitor) Stop() {
	m.cancel()
	<-m.done
	if m.subID != 0 {
		m.c.unsubscribeInvalid(m.subID)
	}
	m.c.log.Info("session monitor stopped")
}

// Poll runs one validity check immediately, outside the timer cadence, and
// returns the poll error (nil for a conclusive valid or invalid result). If a
// poll is already in flight it does nothing.
func (m *Monitor) Poll(ctx context.Context) error {
	if m.ctx.Err() != nil {
		return ErrMonitorStopped
	}
	if !m.busy.CompareAndSwap(false, true) {
		return nil
	}
	defer m.busy.Store(false)
	return m.run(ctx)
}

func (m *Monitor) loop() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			// A poll still in flight suppresses this tick entirely.
			if !m.busy.CompareAndSwap(false, true) {
				continue
			}
			_ = m.run(m.ctx)
			m.busy.Store(false)
		}
	}
}

// run executes one poll and dispatches its outcome. The cancellation token
// is re-checked after the network call so a stale in-flight response cannot
// fire callbacks once the monitor is stopped.
func (m *Monitor) run(ctx context.Context) error {
	var resp validityResponse
	err := m.c.gateway.Get(ctx, pathValidate, &resp)

	if m.ctx.Err() != nil {
		return ErrMonitorStopped
	}

	switch {
	case err == nil && resp.Valid:
		m.c.recoverEpisode()
		return nil

	case err == nil:
		m.c.forceLogout(ctx, "session_invalid", 0)
		return nil

	case IsAuthorization(err):
		m.c.forceLogout(ctx, "authorization_failed", 0)
		return nil

	default:
		m.c.log.Warn("session validity poll failed", zap.Error(err))
		if m.cfg.OnError != nil {
			m.cfg.OnError(err)
		}
		return err
	}
}
