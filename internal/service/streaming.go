package service

import (
	"context"
	"errors"
	"math"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/olegrjumin/cookieguard/internal/consent"
)

// StreamEvent represents a progressive event during a batch scan
type StreamEvent struct {
	Stage   string `json:"stage"` // "start", "result", "error", "complete"
	Domain  string `json:"domain,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// BatchOptions bounds a batch scan
type BatchOptions struct {
	Concurrency int     // parallel scans, at least 1
	RatePerSec  float64 // navigations started per second, 0 means unlimited
}

// BatchResult is the outcome of one domain of a batch
type BatchResult struct {
	Domain     string
	Evaluation *consent.Evaluation
	Err        error
}

// ScanAllStreaming scans domains with bounded concurrency and emits one
// event per domain as it finishes. A failing domain never stops the batch.
// The channel is closed after the "complete" event.
func (s *Service) ScanAllStreaming(ctx context.Context, domains []string, opts BatchOptions) <-chan StreamEvent {
	events := make(chan StreamEvent, len(domains)+2)

	send := func(ev StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(events)

		if !send(StreamEvent{Stage: "start", Message: "Starting batch", Data: map[string]int{"domains": len(domains)}}) {
			return
		}

		limit := rate.Inf
		if opts.RatePerSec > 0 {
			limit = rate.Limit(opts.RatePerSec)
		}
		limiter := rate.NewLimiter(limit, int(math.Max(1, math.Ceil(opts.RatePerSec))))

		var g errgroup.Group
		g.SetLimit(max(1, opts.Concurrency))

		failed := 0
		results := make(chan BatchResult)
		go func() {
			for _, domain := range domains {
				g.Go(func() error {
					if err := limiter.Wait(ctx); err != nil {
						results <- BatchResult{Domain: domain, Err: err}
						return nil
					}
					ev, err := s.Scan(ctx, domain, nil)
					results <- BatchResult{Domain: domain, Evaluation: ev, Err: err}
					return nil
				})
			}
			g.Wait()
			close(results)
		}()

		for res := range results {
			if res.Err != nil {
				failed++
				send(StreamEvent{Stage: "error", Domain: res.Domain, Message: res.Err.Error(), Data: errorData(res.Err)})
				continue
			}
			send(StreamEvent{Stage: "result", Domain: res.Domain, Message: string(res.Evaluation.OverallRating), Data: res.Evaluation})
		}

		s.logger.Info("Batch completed", "domains", len(domains), "failed", failed)
		send(StreamEvent{
			Stage:   "complete",
			Message: "Batch finished",
			Data:    map[string]int{"domains": len(domains), "failed": failed},
		})
	}()

	return events
}

// ScanAll scans every domain and returns the results in input order
func (s *Service) ScanAll(ctx context.Context, domains []string, opts BatchOptions) []BatchResult {
	byDomain := make(map[string][]BatchResult, len(domains))
	for ev := range s.ScanAllStreaming(ctx, domains, opts) {
		switch ev.Stage {
		case "result":
			byDomain[ev.Domain] = append(byDomain[ev.Domain], BatchResult{Domain: ev.Domain, Evaluation: ev.Data.(*consent.Evaluation)})
		case "error":
			byDomain[ev.Domain] = append(byDomain[ev.Domain], BatchResult{Domain: ev.Domain, Err: ev.Data.(*errorPayload).err})
		}
	}

	out := make([]BatchResult, 0, len(domains))
	for _, d := range domains {
		list := byDomain[d]
		if len(list) == 0 {
			out = append(out, BatchResult{Domain: d, Err: context.Canceled})
			continue
		}
		out = append(out, list[0])
		byDomain[d] = list[1:]
	}
	return out
}

// errorPayload is the Data of "error" events
type errorPayload struct {
	Stage string `json:"stage"`
	Kind  string `json:"error_type"`
	err   error
}

func errorData(err error) *errorPayload {
	p := &errorPayload{err: err}
	var se *ScanError
	if errors.As(err, &se) {
		p.Stage, p.Kind = se.Stage, se.Kind
	} else {
		p.Kind, _ = ClassifyError(err)
	}
	return p
}
