package environment

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Reaper wraps a gocron scheduler that periodically sweeps stale fork/base
// checkouts down to a single recurring sweep job.
type Reaper struct {
	cron    gocron.Scheduler
	manager *Manager
	logger  *zap.Logger
}

// NewReaper builds a Reaper over manager. interval is the tick period;
// maxAge is how old a checkout must be before ReapStale reclaims it.
func NewReaper(manager *Manager, interval, maxAge time.Duration, logger *zap.Logger) (*Reaper, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}

	r := &Reaper{cron: cron, manager: manager, logger: logger.Named("reaper")}

	_, err = cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			reaped := manager.ReapStale(maxAge)
			if reaped > 0 {
				r.logger.Info("sweep reclaimed stale checkouts", zap.Int("count", reaped))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduling reaper sweep: %w", err)
	}

	return r, nil
}

// Start begins the periodic sweep.
func (r *Reaper) Start() {
	r.cron.Start()
}

// Stop gracefully shuts the scheduler down, waiting for any in-flight sweep
// to finish.
func (r *Reaper) Stop() error {
	if err := r.cron.Shutdown(); err != nil {
		return fmt.Errorf("reaper shutdown: %w", err)
	}
	return nil
}
