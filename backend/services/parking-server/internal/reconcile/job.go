// Package reconcile periodically persists the elapsed time of live sessions so a
// crash loses at most one period of billing.
package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"parkmeter/backend/services/parking-server/internal/metrics"
	"parkmeter/backend/services/parking-server/internal/service"
)

// DefaultPeriod is the flush cadence when none is configured.
const DefaultPeriod = 5 * time.Second

const finalFlushTimeout = 10 * time.Second

// Flusher is the part of the session store the job drives.
type Flusher interface {
	ReconcileTargets() []string
	Flush(ctx context.Context, deviceID string) error
}

// Job flushes every live session on a fixed monotonic period.
type Job struct {
	store  Flusher
	period time.Duration
	logger *zap.Logger
}

// NewJob builds job.
func NewJob(store Flusher, period time.Duration, logger *zap.Logger) *Job {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Job{store: store, period: period, logger: logger}
}

// Run flushes on every tick until ctx is done, then performs one final flush
// with a fresh bounded context and returns.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.period)
	defer ticker.Stop()

	j.logger.Info("reconciliation job started", zap.Duration("period", j.period))
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
			n := j.FlushAll(flushCtx)
			cancel()
			j.logger.Info("reconciliation job stopped", zap.Int("final_flushed", n))
			return
		case <-ticker.C:
			j.FlushAll(ctx)
		}
	}
}

// FlushAll runs one pass and returns the number of sessions persisted. A failure
// on one session never stops the pass.
func (j *Job) FlushAll(ctx context.Context) int {
	metrics.ReconcileTicksTotal.Inc()

	var flushed int
	for _, id := range j.store.ReconcileTargets() {
		err := j.store.Flush(ctx, id)
		switch {
		case err == nil:
			flushed++
			metrics.ReconcileFlushesTotal.WithLabelValues("ok").Inc()
		case errors.Is(err, service.ErrSessionNotFound):
			// finalized since the target list was taken
			metrics.ReconcileFlushesTotal.WithLabelValues("gone").Inc()
		default:
			metrics.ReconcileFlushesTotal.WithLabelValues("error").Inc()
			j.logger.Warn("reconciliation flush failed", zap.String("device_id", id), zap.Error(err))
		}
	}
	j.logger.Debug("reconciliation pass", zap.Int("flushed", flushed))
	return flushed
}
