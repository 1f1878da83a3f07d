package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/olegrjumin/cookieguard/internal/logging"
)

// Scheduler re-scans a fixed domain list on a cron schedule
type Scheduler struct {
	svc      *Service
	cron     *cron.Cron
	schedule string
	domains  []string
	batch    BatchOptions
	logger   *logging.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler validates schedule (standard five-field cron or a
// descriptor like "@daily")
func NewScheduler(svc *Service, schedule string, domains []string, batch BatchOptions, logger *logging.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		svc:      svc,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule: schedule,
		domains:  domains,
		batch:    batch,
		logger:   logger.With("component", "scheduler"),
	}, nil
}

// Start registers the batch job and runs the scheduler until ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule scans: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Scan scheduler started", "schedule", s.schedule, "domains", len(s.domains))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	s.logger.Info("Starting scheduled scan", "domains", len(s.domains))

	failed := 0
	for _, res := range s.svc.ScanAll(ctx, s.domains, s.batch) {
		if res.Err != nil {
			failed++
		}
	}

	s.logger.Info("Scheduled scan finished", "domains", len(s.domains), "failed", failed)
}

// Stop waits for a running batch to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Scan scheduler stopped")
}
