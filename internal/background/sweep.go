package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/tgiokas/dms-auth/internal/cache"
)

// SweepManager periodically evicts physically expired entries from an
// ephemeral store backend that needs it (the in-process memory store).
// Expiry is enforced at read time regardless; the sweep only bounds memory.
type SweepManager struct {
	sweeper  cache.Sweeper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(sweeper cache.Sweeper, logger *slog.Logger, interval time.Duration) *SweepManager {
	return &SweepManager{
		sweeper:  sweeper,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep task
func (sm *SweepManager) Start(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.sweeper.DeleteExpired()
		case <-sm.stopCh:
			sm.logger.Info("sweep manager stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("sweep manager context cancelled")
			return
		}
	}
}

// Stop signals the sweep manager to stop
func (sm *SweepManager) Stop() {
	close(sm.stopCh)
}
