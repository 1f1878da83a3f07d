package service

import (
	"context"
	"time"

	"github.com/olegrjumin/cookieguard/internal/logging"
	"github.com/olegrjumin/cookieguard/internal/store"
)

// RetentionService periodically deletes evaluations older than maxAge
type RetentionService struct {
	store    store.Store
	maxAge   time.Duration
	interval time.Duration
	logger   *logging.Logger
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetentionService creates a new retention service
func NewRetentionService(st store.Store, maxAge, interval time.Duration, logger *logging.Logger) *RetentionService {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionService{
		store:    st,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger.With("component", "retention"),
		now:      time.Now,
	}
}

// Start begins the automatic pruning until ctx is done or Stop is called
func (r *RetentionService) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)

		// Run immediately on start
		r.Prune(ctx)

		// Then run periodically
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.Prune(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the service and waits for a running prune
func (r *RetentionService) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

// Prune removes evaluations scanned before now minus maxAge
func (r *RetentionService) Prune(ctx context.Context) int64 {
	cutoff := r.now().Add(-r.maxAge)

	deleted, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		r.logger.Error("Retention prune failed", "error", err)
		return 0
	}

	if deleted > 0 {
		r.logger.Info("Pruned old evaluations", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted
}
