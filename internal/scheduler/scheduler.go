package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"syncademic/internal/domain"
	appLog "syncademic/internal/log"
	"syncademic/internal/store"
	syncer "syncademic/internal/sync"
)

// Scheduler triggers a sync for every stored profile on a cron schedule.
// Profiles already being synced are deduplicated by the orchestrator's
// singleflight, so an overrunning tick never stacks work.
type Scheduler struct {
	cron     *cron.Cron
	profiles store.ProfileStore
	orch     *syncer.Orchestrator
	spec     string
}

func New(spec string, profiles store.ProfileStore, orch *syncer.Orchestrator) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		profiles: profiles,
		orch:     orch,
		spec:     spec,
	}
}

// Start registers the tick job and starts the cron loop. It returns an
// error only for an invalid cron spec.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) })
	if err != nil {
		return err
	}
	s.cron.Start()
	appLog.Info("scheduler started", "cron", s.spec)
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	appLog.Info("scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		appLog.Error("scheduler failed to list profiles", err)
		return
	}

	for _, p := range profiles {
		if p.Status == domain.StatusDeleting {
			continue
		}
		out := s.orch.Sync(ctx, syncer.Request{
			ProfileID: p.ID,
			Trigger:   domain.TriggerScheduled,
			Type:      domain.SyncRegular,
		})
		if out.Shared {
			continue
		}
		if out.State == syncer.StateFailed {
			appLog.Warn("scheduled sync failed", "profile_id", p.ID, "kind", out.Kind)
		}
	}
}
