package browserpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/printeer-go/printeer/internal/errs"
)

type instanceState int

const (
	stateAvailable instanceState = iota
	stateBusy
	stateDestroyed
)

type entry struct {
	mu         sync.Mutex
	id         string
	handle     Handle
	state      instanceState
	createdAt  time.Time
	lastUsedAt time.Time
	healthy    bool
}

// Pool implements the browser pool manager.
//
// Lock ordering: mu guards availableStack/instances/total/creating;
// never hold mu during factory I/O (Create/Validate/Close/KillProcess).
// Per-instance state is additionally guarded by entry.mu for updates
// that must be consistent with concurrent ReleaseBrowser calls.
type Pool struct {
	factory Factory
	params  Params
	log     zerolog.Logger

	mu             sync.Mutex
	instances      map[string]*entry
	availableStack []*entry // LIFO: last released is acquired first
	total          int      // exists or reserved-for-creation

	draining atomic.Bool
	creating atomic.Int32

	notifyMu sync.Mutex
	notifyCh chan struct{}

	metrics struct {
		created   atomic.Int64
		reused    atomic.Int64
		destroyed atomic.Int64
		errors    atomic.Int64
	}

	stopCh chan struct{}
	wg     sync.WaitGroup

	registered atomic.Bool
}

// New constructs a Pool. Call Initialize to warm it up and start its
// background cleanup loop.
func New(factory Factory, params Params, logger zerolog.Logger) *Pool {
	if params.AcquireTimeout <= 0 {
		params.AcquireTimeout = 30 * time.Second
	}
	if params.GracefulClose <= 0 {
		params.GracefulClose = 10 * time.Second
	}
	if params.CleanupInterval <= 0 {
		params.CleanupInterval = 30 * time.Second
	}
	p := &Pool{
		factory:   factory,
		params:    params,
		log:       logger,
		instances: make(map[string]*entry),
		notifyCh:  make(chan struct{}),
		stopCh:    make(chan struct{}),
	}
	return p
}

// Initialize warms the pool up to Min instances and starts the
// cleanup loop, registering the pool for emergency cleanup.
func (p *Pool) Initialize(ctx context.Context) error {
	register(p)
	p.registered.Store(true)
	if err := p.WarmUp(ctx); err != nil {
		return err
	}
	p.wg.Add(1)
	go p.cleanupLoop()
	return nil
}

// WarmUp creates instances up to Min, in parallel.
func (p *Pool) WarmUp(ctx context.Context) error {
	p.mu.Lock()
	need := p.params.Min - p.total
	if need > 0 {
		p.total += need
	}
	p.mu.Unlock()

	if need <= 0 {
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for i := 0; i < need; i++ {
		eg.Go(func() error {
			e, err := p.createInstance(egCtx)
			if err != nil {
				return err
			}
			e.mu.Lock()
			e.state = stateAvailable
			e.mu.Unlock()
			p.mu.Lock()
			p.availableStack = append(p.availableStack, e)
			p.mu.Unlock()
			p.broadcast()
			return nil
		})
	}
	return eg.Wait()
}

// createInstance tries the factory's optimal config, then its
// fallback list in order, returning the first validated instance.
func (p *Pool) createInstance(ctx context.Context) (*entry, error) {
	p.creating.Add(1)
	defer p.creating.Add(-1)

	configs := append([]LaunchOptions{p.factory.OptimalLaunchOptions()}, p.factory.FallbackLaunchOptions()...)
	labels := make([]string, len(configs))
	for i := range configs {
		if i == 0 {
			labels[i] = "optimal"
		} else {
			labels[i] = fmt.Sprintf("fallback-%d", i)
		}
	}

	var lastErr error
	var tried []string
	for i, opts := range configs {
		tried = append(tried, labels[i])
		h, err := p.factory.Create(ctx, opts)
		if err != nil {
			lastErr = err
			continue
		}
		if !p.factory.Validate(h) {
			_ = p.factory.Close(h)
			lastErr = fmt.Errorf("launched instance failed validation probe")
			continue
		}

		e := &entry{
			id:         uuid.NewString(),
			handle:     h,
			state:      stateBusy,
			createdAt:  time.Now(),
			lastUsedAt: time.Now(),
			healthy:    true,
		}
		p.mu.Lock()
		p.instances[e.id] = e
		p.mu.Unlock()
		p.metrics.created.Add(1)
		return e, nil
	}

	p.mu.Lock()
	p.total--
	p.mu.Unlock()
	p.metrics.errors.Add(1)
	return nil, errs.NewCreationFailedError(lastErr, tried)
}

func (p *Pool) broadcast() {
	p.notifyMu.Lock()
	close(p.notifyCh)
	p.notifyCh = make(chan struct{})
	p.notifyMu.Unlock()
}

func (p *Pool) notifyChan() chan struct{} {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	return p.notifyCh
}

// GetBrowser implements the acquire algorithm.
func (p *Pool) GetBrowser(ctx context.Context) (BrowserInstance, error) {
	if p.draining.Load() {
		return BrowserInstance{}, errs.NewShuttingDownError()
	}

	deadline := time.Now().Add(p.params.AcquireTimeout)
	unhealthyRetries := 0

	for {
		p.mu.Lock()
		if n := len(p.availableStack); n > 0 {
			e := p.availableStack[n-1]
			p.availableStack = p.availableStack[:n-1]
			p.mu.Unlock()

			e.mu.Lock()
			e.state = stateBusy
			e.mu.Unlock()

			if !p.factory.Validate(e.handle) {
				if unhealthyRetries >= 1 {
					p.destroyAggressive(e)
					p.metrics.errors.Add(1)
					return BrowserInstance{}, errs.NewUnhealthyOnAcquireError()
				}
				unhealthyRetries++
				p.destroyAggressive(e)
				continue
			}

			p.metrics.reused.Add(1)
			e.mu.Lock()
			e.lastUsedAt = time.Now()
			inst := BrowserInstance{ID: e.id, Handle: e.handle, CreatedAt: e.createdAt, LastUsedAt: e.lastUsedAt, Healthy: true}
			e.mu.Unlock()
			return inst, nil
		}

		if p.total < p.params.Max {
			p.total++
			p.mu.Unlock()

			e, err := p.createInstance(ctx)
			if err != nil {
				return BrowserInstance{}, err
			}
			return BrowserInstance{ID: e.id, Handle: e.handle, CreatedAt: e.createdAt, LastUsedAt: e.lastUsedAt, Healthy: true}, nil
		}
		p.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.metrics.errors.Add(1)
			return BrowserInstance{}, errs.NewPoolTimeoutError(p.params.AcquireTimeout.String())
		}

		ch := p.notifyChan()
		timer := time.NewTimer(remaining)
		select {
		case <-ch:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return BrowserInstance{}, ctx.Err()
		case <-timer.C:
			p.metrics.errors.Add(1)
			return BrowserInstance{}, errs.NewPoolTimeoutError(p.params.AcquireTimeout.String())
		}
	}
}

// ReleaseBrowser implements the release semantics.
func (p *Pool) ReleaseBrowser(inst BrowserInstance) {
	p.mu.Lock()
	e, ok := p.instances[inst.ID]
	p.mu.Unlock()
	if !ok {
		p.log.Warn().Str("instance_id", inst.ID).Msg("release of unknown browser instance, ignoring")
		return
	}

	healthy := p.validateWithTimeout(e.handle, 5*time.Second)
	if !healthy {
		p.destroyAggressive(e)
		p.metrics.errors.Add(1)
		return
	}

	e.mu.Lock()
	e.state = stateAvailable
	e.lastUsedAt = time.Now()
	e.mu.Unlock()

	p.mu.Lock()
	p.availableStack = append(p.availableStack, e)
	p.mu.Unlock()
	p.broadcast()
}

func (p *Pool) validateWithTimeout(h Handle, timeout time.Duration) bool {
	done := make(chan bool, 1)
	go func() { done <- p.factory.Validate(h) }()
	select {
	case ok := <-done:
		return ok
	case <-time.After(timeout):
		return false
	}
}

// destroyAggressive implements the 4-step aggressive destruction
// protocol: graceful close, force kill, verify, bounded
// retry.
func (p *Pool) destroyAggressive(e *entry) {
	const maxAttempts = 3
	closed := p.gracefulClose(e.handle, p.params.GracefulClose)
	for attempt := 1; !closed && attempt < maxAttempts; attempt++ {
		_ = p.factory.KillProcess(e.handle)
		closed = !p.factory.Validate(e.handle)
	}
	if !closed {
		_ = p.factory.KillProcess(e.handle)
		p.log.Warn().Str("instance_id", e.id).Msg("destruction could not be fully verified after bounded retries")
	}

	e.mu.Lock()
	e.state = stateDestroyed
	e.mu.Unlock()

	p.mu.Lock()
	delete(p.instances, e.id)
	p.removeFromAvailableLocked(e.id)
	p.total--
	p.mu.Unlock()

	p.metrics.destroyed.Add(1)
	p.broadcast()
}

func (p *Pool) gracefulClose(h Handle, timeout time.Duration) bool {
	done := make(chan error, 1)
	go func() { done <- p.factory.Close(h) }()
	select {
	case err := <-done:
		return err == nil
	case <-time.After(timeout):
		return false
	}
}

func (p *Pool) removeFromAvailableLocked(id string) {
	for i, e := range p.availableStack {
		if e.id == id {
			last := len(p.availableStack) - 1
			p.availableStack[i] = p.availableStack[last]
			p.availableStack = p.availableStack[:last]
			return
		}
	}
}

func (p *Pool) cleanupLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.params.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.cleanupTick()
		}
	}
}

func (p *Pool) cleanupTick() {
	p.mu.Lock()
	candidates := make([]*entry, len(p.availableStack))
	copy(candidates, p.availableStack)
	p.mu.Unlock()

	now := time.Now()
	for _, e := range candidates {
		if !p.factory.Validate(e.handle) {
			p.destroyAggressive(e)
			continue
		}
		p.mu.Lock()
		total := p.total
		min := p.params.Min
		p.mu.Unlock()

		e.mu.Lock()
		idleFor := now.Sub(e.lastUsedAt)
		e.mu.Unlock()

		if total > min && p.params.IdleTimeout > 0 && idleFor > p.params.IdleTimeout {
			p.destroyAggressive(e)
		}
	}

	p.mu.Lock()
	deficit := 0
	if p.creating.Load() == 0 {
		deficit = p.params.Min - p.total
	}
	if deficit > 0 {
		p.total += deficit
	}
	p.mu.Unlock()

	for i := 0; i < deficit; i++ {
		go func() {
			e, err := p.createInstance(context.Background())
			if err != nil {
				p.log.Warn().Err(err).Msg("cleanup top-up failed to create instance")
				return
			}
			e.mu.Lock()
			e.state = stateAvailable
			e.mu.Unlock()
			p.mu.Lock()
			p.availableStack = append(p.availableStack, e)
			p.mu.Unlock()
			p.broadcast()
		}()
	}
}

// CreatedReused reports the created/reused metric counters, for
// consumers (e.g. the batch scheduler's report insights) that only
// need those two.
func (p *Pool) CreatedReused() (created, reused int64) {
	return p.metrics.created.Load(), p.metrics.reused.Load()
}

// Status reports pool totals, per-state counts, and metrics.
func (p *Pool) Status() PoolStatus {
	p.mu.Lock()
	total := p.total
	available := len(p.availableStack)
	healthy := 0
	for _, e := range p.instances {
		e.mu.Lock()
		if e.healthy && e.state != stateDestroyed {
			healthy++
		}
		e.mu.Unlock()
	}
	p.mu.Unlock()

	return PoolStatus{
		Total:     total,
		Available: available,
		Busy:      total - available,
		Healthy:   healthy,
		Min:       p.params.Min,
		Max:       p.params.Max,
		Draining:  p.draining.Load(),
		Metrics: Metrics{
			Created:   p.metrics.created.Load(),
			Reused:    p.metrics.reused.Load(),
			Destroyed: p.metrics.destroyed.Load(),
			Errors:    p.metrics.errors.Load(),
		},
	}
}

// SignalShrink implements degradation.PoolShrinker: it destroys one
// available instance above Min, if any, preferring the coldest.
func (p *Pool) SignalShrink() {
	p.mu.Lock()
	if p.total <= p.params.Min || len(p.availableStack) == 0 {
		p.mu.Unlock()
		return
	}
	e := p.availableStack[0]
	p.availableStack = p.availableStack[1:]
	p.mu.Unlock()

	p.destroyAggressive(e)
}

// Shutdown drains the pool: new acquisitions fail fast, every
// instance is destroyed aggressively in parallel, and the cleanup
// loop stops. Metrics counters are left untouched
// Idempotent.
func (p *Pool) Shutdown() {
	if p.draining.Swap(true) {
		return
	}
	close(p.stopCh)
	p.wg.Wait()

	p.mu.Lock()
	all := make([]*entry, 0, len(p.instances))
	for _, e := range p.instances {
		all = append(all, e)
	}
	p.mu.Unlock()

	eg := new(errgroup.Group)
	eg.SetLimit(4)
	for _, e := range all {
		e := e
		eg.Go(func() error {
			p.destroyAggressive(e)
			return nil
		})
	}
	_ = eg.Wait()

	p.mu.Lock()
	p.instances = make(map[string]*entry)
	p.availableStack = nil
	p.total = 0
	p.mu.Unlock()

	if p.registered.Load() {
		unregister(p)
	}
	p.broadcast()
}
