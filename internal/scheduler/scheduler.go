// Package scheduler launches job kinds on cron schedules, typically the
// periodic full refresh run.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/4liaghaie/scraper-dashboard/internal/engine"
	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/params"
)

// Launcher starts jobs; satisfied by *engine.Engine.
type Launcher interface {
	Start(ctx context.Context, kind string, seed params.Values) (jobs.Snapshot, error)
}

// Entry binds a cron expression to a job launch.
type Entry struct {
	// Spec is a standard five-field cron expression, or a descriptor
	// like "@daily".
	Spec string
	// Kind is the job kind to launch.
	Kind string
	// Params seed the launch; persisted overrides still apply on top.
	Params params.Values
}

// Scheduler runs registered entries until stopped.
type Scheduler struct {
	cron     *cron.Cron
	launcher Launcher
	logger   logger.Logger
}

// New creates an idle scheduler.
func New(log logger.Logger, launcher Launcher) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		launcher: launcher,
		logger:   log,
	}
}

// Add registers one scheduled launch. A busy or closed engine at fire
// time is logged and skipped, never retried early.
func (s *Scheduler) Add(e Entry) error {
	if e.Kind == "" {
		return errors.New("scheduler: entry without kind")
	}

	_, err := s.cron.AddFunc(e.Spec, func() {
		snap, startErr := s.launcher.Start(context.Background(), e.Kind, e.Params)
		switch {
		case errors.Is(startErr, engine.ErrEngineUnavailable):
			s.logger.Warn("scheduled launch skipped, engine unavailable",
				logger.String("kind", e.Kind),
			)
		case startErr != nil:
			s.logger.Error("scheduled launch failed",
				logger.String("kind", e.Kind),
				logger.Error(startErr),
			)
		default:
			s.logger.Info("scheduled job launched",
				logger.String("kind", e.Kind),
				logger.String("job_id", snap.ID),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("add schedule %q for %s: %w", e.Spec, e.Kind, err)
	}
	return nil
}

// Start begins firing entries on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight launches, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
