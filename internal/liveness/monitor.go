// Package liveness runs the periodic background tasks of the connection
// layer: evicting inactive sockets and reconciling the external QR viewer
// refcount against the set of actually-connected viewers.
package liveness

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default intervals. Eviction is deliberately lazy; the reconciler runs
// often because missed QR releases directly leak an external resource.
const (
	DefaultSweepInterval     = 10 * time.Minute
	DefaultIdleTimeout       = 30 * time.Minute
	DefaultReconcileInterval = 1 * time.Minute
)

// ConnectionSweeper is the hub surface the monitor needs.
type ConnectionSweeper interface {
	SweepInactive(idleFor time.Duration) int
	ViewerIDs() []string
}

// ViewerReconciler self-corrects the externally-owned QR refcount.
type ViewerReconciler interface {
	ReconcileViewers(ctx context.Context, live []string) error
}

// Config overrides the default intervals; zero values keep the defaults.
type Config struct {
	SweepInterval     time.Duration
	IdleTimeout       time.Duration
	ReconcileInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ReconcileInterval == 0 {
		c.ReconcileInterval = DefaultReconcileInterval
	}
	return c
}

// Monitor runs the inactivity sweep and the refcount reconciliation.
type Monitor struct {
	hub     ConnectionSweeper
	viewers ViewerReconciler
	clock   clockwork.Clock
	cfg     Config
	stopCh  chan struct{}
}

// NewMonitor creates a monitor. viewers may be nil when no QR resource is
// wired; the reconciliation task then idles.
func NewMonitor(hub ConnectionSweeper, viewers ViewerReconciler, clock clockwork.Clock, cfg Config) *Monitor {
	return &Monitor{
		hub:     hub,
		viewers: viewers,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		stopCh:  make(chan struct{}),
	}
}

// Start runs both periodic tasks until Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	sweep := m.clock.NewTicker(m.cfg.SweepInterval)
	defer sweep.Stop()
	reconcile := m.clock.NewTicker(m.cfg.ReconcileInterval)
	defer reconcile.Stop()

	for {
		select {
		case <-sweep.Chan():
			if evicted := m.hub.SweepInactive(m.cfg.IdleTimeout); evicted > 0 {
				slog.Info("Inactivity sweep evicted connections", "evicted", evicted)
			}
		case <-reconcile.Chan():
			m.reconcile(ctx)
		case <-m.stopCh:
			slog.Info("Liveness monitor stopped")
			return
		case <-ctx.Done():
			slog.Info("Liveness monitor context cancelled")
			return
		}
	}
}

// Stop gracefully stops the monitor loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) reconcile(ctx context.Context) {
	if m.viewers == nil {
		return
	}
	live := m.hub.ViewerIDs()
	if err := m.viewers.ReconcileViewers(ctx, live); err != nil {
		slog.Warn("QR viewer reconciliation failed", "live_viewers", len(live), "error", err)
	}
}
