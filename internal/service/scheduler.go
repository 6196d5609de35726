package service

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron and periodically kicks off a bulk
// enrichment run so the catalog catches up without manual triggers.
type Scheduler struct {
	cron    *cron.Cron
	service *EnrichmentService
	spec    string
}

// NewScheduler creates a Scheduler for the given cron spec, e.g.
// "@daily" or "0 3 * * *".
func NewScheduler(service *EnrichmentService, spec string) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		service: service,
		spec:    spec,
	}
}

// Start registers the job and starts the scheduler. A run already in
// progress at fire time is left alone (StartBulk rejects the overlap).
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		result := s.service.StartBulk()
		if result.Started {
			log.Printf("[Scheduler] Bulk enrichment started (spec %q)", s.spec)
		} else {
			log.Printf("[Scheduler] Skipping scheduled run: %s", result.Message)
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[Scheduler] Cron started - spec: %s", s.spec)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[Scheduler] Cron stopped")
}
