// README: Aggregation service triggers cluster refreshes on demand and on a schedule.
package aggregation

import (
	"context"
	"fmt"
	"log"
	"time"

	"taxifare/internal/metrics"
	"taxifare/internal/modules/cluster"
	"taxifare/internal/timeutil"
)

// Invalidator drops cached cluster reads after a refresh.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Service struct {
	refresher cluster.Refresher
	lock      Locker
	cache     Invalidator
	clock     timeutil.Clock
	interval  time.Duration
}

// NewService wires a refresher. lock defaults to an in-process lock; cache may be nil.
// interval <= 0 disables the scheduler.
func NewService(refresher cluster.Refresher, lock Locker, cache Invalidator, clock timeutil.Clock, interval time.Duration) *Service {
	if lock == nil {
		lock = NewLocalLocker()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Service{refresher: refresher, lock: lock, cache: cache, clock: clock, interval: interval}
}

// RunNow refreshes clusters once. It returns ErrAlreadyRunning while another
// run holds the lock.
func (s *Service) RunNow(ctx context.Context) (Result, error) {
	release, ok, err := s.lock.TryLock(ctx)
	if err != nil {
		metrics.AggregationRuns.WithLabelValues("error").Inc()
		return Result{}, err
	}
	if !ok {
		metrics.AggregationRuns.WithLabelValues("skipped").Inc()
		return Result{}, ErrAlreadyRunning
	}
	defer release()

	res := Result{StartedAt: s.clock.Now().UTC()}
	counts, err := s.refresher.Refresh(ctx)
	if err != nil {
		metrics.AggregationRuns.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("refresh clusters: %w", err)
	}
	res.ClustersRefreshed = counts.ClustersRefreshed
	res.FeatureRowsUpserted = counts.FeatureRowsUpserted
	res.FinishedAt = s.clock.Now().UTC()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Printf("[aggregation] cache invalidation failed: %v", err)
		}
	}
	metrics.AggregationRuns.WithLabelValues("ok").Inc()
	log.Printf("[aggregation] refreshed clusters=%d features=%d in %s",
		res.ClustersRefreshed, res.FeatureRowsUpserted, res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

// RunScheduler refreshes every interval until ctx is cancelled.
func (s *Service) RunScheduler(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunNow(ctx); err != nil {
				log.Printf("[aggregation] scheduled run: %v", err)
			}
		}
	}
}
