// Package browser drives headless Chrome through chromedp and exposes each
// scan as an isolated consent.Session.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/olegrjumin/cookieguard/internal/consent"
	"github.com/olegrjumin/cookieguard/internal/logging"
)

// Browser hands out sessions backed by a pool of Chrome processes
type Browser struct {
	pool   *Pool
	logger *logging.Logger
}

// New starts the browser pool
func New(opts Options, logger *logging.Logger) (*Browser, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	pool, err := NewPool(opts.PoolSize, opts.allocatorOptions())
	if err != nil {
		return nil, err
	}

	return &Browser{
		pool:   pool,
		logger: logger.With("component", "browser"),
	}, nil
}

// Open creates a fresh browser context, so cookies and storage never leak
// between scans
func (b *Browser) Open(ctx context.Context) (consent.Session, error) {
	inst, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(inst.ctx, chromedp.WithNewBrowserContext())

	s := newSession(tabCtx, b.logger)
	s.release = func(failed bool) {
		cancel()
		if failed {
			b.pool.MarkUnhealthy(inst)
		}
		b.pool.Release(inst)
	}

	chromedp.ListenTarget(tabCtx, s.onEvent)

	if err := s.run(ctx, network.Enable()); err != nil {
		s.failed = true
		s.Close()
		return nil, fmt.Errorf("open browser context: %w", err)
	}

	return s, nil
}

// Health reports free and total browser processes
func (b *Browser) Health() (available, total int) {
	return b.pool.Health()
}

// Close stops all browser processes
func (b *Browser) Close() error {
	return b.pool.Close()
}
