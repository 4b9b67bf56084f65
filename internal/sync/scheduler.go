package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gstbill/gstbill/internal/logging"
)

// Scheduler fires timer-driven sync cycles. Ticks while offline are skipped;
// the watcher's reconnect trigger covers the catch-up.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(manager *Manager, watcher *Watcher, log logging.Logger, interval time.Duration) (*Scheduler, error) {
	log = log.With("component", "scheduler")
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx := context.Background()
		if !watcher.Online() {
			log.Debug(ctx, "skipping scheduled sync while offline")
			return
		}
		manager.Sync(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule sync: %w", err)
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the timer and waits for an in-flight scheduled cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
