package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrPoolClosed is returned by Acquire after Close
var ErrPoolClosed = errors.New("browser pool closed")

// Instance is one running browser process
type Instance struct {
	ctx        context.Context
	cancel     context.CancelFunc
	inUse      bool
	healthy    bool
	lastUsed   time.Time
	errorCount int
}

// Pool keeps pre-warmed browser processes. Each process serves one scan
// at a time; scans get their own browser context inside it.
type Pool struct {
	instances []*Instance
	mu        sync.Mutex
	slots     chan struct{}
	closed    bool
	opts      []chromedp.ExecAllocatorOption
}

// NewPool starts size browser processes
func NewPool(size int, opts []chromedp.ExecAllocatorOption) (*Pool, error) {
	if size <= 0 {
		size = 2
	}

	pool := &Pool{
		instances: make([]*Instance, 0, size),
		slots:     make(chan struct{}, size),
		opts:      opts,
	}

	// Pre-warm browser instances
	for i := 0; i < size; i++ {
		inst, err := pool.createInstance()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create browser instance %d: %w", i, err)
		}
		pool.instances = append(pool.instances, inst)
	}

	return pool, nil
}

// createInstance starts a browser process
func (p *Pool) createInstance() (*Instance, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), p.opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start browser (pre-warm)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, err
	}

	return &Instance{
		ctx: ctx,
		cancel: func() {
			cancel()
			allocCancel()
		},
		healthy:  true,
		lastUsed: time.Now(),
	}, nil
}

// Acquire waits for a free browser, recycling unhealthy ones
func (p *Pool) Acquire(ctx context.Context) (*Instance, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		<-p.slots
		return nil, ErrPoolClosed
	}

	for _, inst := range p.instances {
		if !inst.inUse && inst.healthy {
			inst.inUse = true
			inst.lastUsed = time.Now()
			return inst, nil
		}
	}

	for i, inst := range p.instances {
		if inst.inUse || inst.healthy {
			continue
		}
		if inst.cancel != nil {
			inst.cancel()
		}

		fresh, err := p.createInstance()
		if err != nil {
			continue
		}
		p.instances[i] = fresh
		fresh.inUse = true
		fresh.lastUsed = time.Now()
		return fresh, nil
	}

	<-p.slots
	return nil, errors.New("no browser instance available")
}

// Release returns an instance to the pool
func (p *Pool) Release(inst *Instance) {
	if inst == nil {
		return
	}

	p.mu.Lock()
	inst.inUse = false
	inst.lastUsed = time.Now()
	p.mu.Unlock()

	<-p.slots
}

// MarkUnhealthy counts an error against an instance; three errors retire it
func (p *Pool) MarkUnhealthy(inst *Instance) {
	if inst == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	inst.errorCount++
	if inst.errorCount >= 3 {
		inst.healthy = false
	}
}

// Health reports free and total instances
func (p *Pool) Health() (available, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total = len(p.instances)
	for _, inst := range p.instances {
		if !inst.inUse {
			available++
		}
	}
	return
}

// Close shuts down all browser processes
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, inst := range p.instances {
		if inst.cancel != nil {
			inst.cancel()
		}
	}

	p.instances = nil
	p.closed = true
	return nil
}
