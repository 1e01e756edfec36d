package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aengwo/rfid-project/internal/campus/store"
)

// HeartbeatPruner periodically deletes heartbeat records older than a
// configurable retention period. It runs as a background goroutine and
// is stopped via its context or the Stop method.
//
// A retention of 0 disables pruning entirely.
type HeartbeatPruner struct {
	store     store.HeartbeatStore
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type PrunerConfig struct {
	// RetentionDays is how many days of heartbeat history to keep.
	// 0 means keep everything (pruner will not start).
	RetentionDays int

	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int
}

// NewHeartbeatPruner creates a pruner but does not start it.
func NewHeartbeatPruner(s store.HeartbeatStore, cfg PrunerConfig, logger *zap.Logger) *HeartbeatPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HeartbeatPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start runs an immediate prune, then repeats on the configured interval
// until ctx is cancelled or Stop is called. Only the first call has an
// effect.
func (p *HeartbeatPruner) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		if p.retention <= 0 {
			p.logger.Info("heartbeat pruner disabled", zap.Int("retention_days", 0))
			close(p.done)
			return
		}

		ctx, p.cancel = context.WithCancel(ctx)
		go p.loop(ctx)

		p.logger.Info("heartbeat pruner started",
			zap.Int("retention_days", int(p.retention.Hours()/24)),
			zap.Duration("interval", p.interval))
	})
}

// Stop signals the pruner to exit and waits for it to finish. Safe to call
// more than once, and a no-op if Start was never called.
func (p *HeartbeatPruner) Stop() {
	started := true
	p.startOnce.Do(func() {
		started = false
		close(p.done)
	})
	if started && p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *HeartbeatPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

// prune returns how many rows were removed; errors are logged.
func (p *HeartbeatPruner) prune(ctx context.Context) int64 {
	cutoff := p.now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("heartbeat prune failed", zap.Error(err))
		}
		return 0
	}
	if deleted > 0 {
		p.logger.Info("heartbeat prune",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted
}
