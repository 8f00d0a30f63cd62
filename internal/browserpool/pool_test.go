package browserpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeHandle struct {
	id      int
	healthy atomic.Bool
	closed  atomic.Bool
	killed  atomic.Bool
}

// fakeFactory is a deterministic, in-memory Factory for testing the
// pool's state machine without a real browser process.
type fakeFactory struct {
	mu        sync.Mutex
	nextID    int
	failFirst int // number of Create calls to fail before succeeding
	created   []*fakeHandle
}

func (f *fakeFactory) Create(ctx context.Context, opts LaunchOptions) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFirst > 0 {
		f.failFirst--
		return nil, errors.New("simulated launch failure")
	}
	f.nextID++
	h := &fakeHandle{id: f.nextID}
	h.healthy.Store(true)
	f.created = append(f.created, h)
	return h, nil
}

func (f *fakeFactory) Validate(h Handle) bool {
	return h.(*fakeHandle).healthy.Load() && !h.(*fakeHandle).closed.Load()
}

func (f *fakeFactory) Close(h Handle) error {
	h.(*fakeHandle).closed.Store(true)
	return nil
}

func (f *fakeFactory) KillProcess(h Handle) error {
	h.(*fakeHandle).killed.Store(true)
	h.(*fakeHandle).closed.Store(true)
	return nil
}

func (f *fakeFactory) GetVersion(h Handle) string { return "fake/1.0" }

func (f *fakeFactory) OptimalLaunchOptions() LaunchOptions { return "optimal" }

func (f *fakeFactory) FallbackLaunchOptions() []LaunchOptions {
	return []LaunchOptions{"standard", "minimal", "container-optimized", "headless-server"}
}

func testParams() Params {
	return Params{Min: 1, Max: 2, AcquireTimeout: 200 * time.Millisecond, GracefulClose: 50 * time.Millisecond, CleanupInterval: time.Hour}
}

func TestGetBrowser_CreatesUpToMax(t *testing.T) {
	p := New(&fakeFactory{}, testParams(), zerolog.Nop())

	a, err := p.GetBrowser(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.GetBrowser(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Fatal("expected distinct instances")
	}

	status := p.Status()
	if status.Total != 2 || status.Busy != 2 {
		t.Fatalf("expected 2 busy of 2 total, got %+v", status)
	}
}

func TestGetBrowser_TimesOutAtMax(t *testing.T) {
	p := New(&fakeFactory{}, testParams(), zerolog.Nop())
	if _, err := p.GetBrowser(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetBrowser(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := p.GetBrowser(context.Background())
	if err == nil {
		t.Fatal("expected pool_timeout error when pool is exhausted")
	}
}

func TestReleaseBrowser_LIFOReuse(t *testing.T) {
	p := New(&fakeFactory{}, testParams(), zerolog.Nop())
	a, _ := p.GetBrowser(context.Background())
	b, _ := p.GetBrowser(context.Background())

	p.ReleaseBrowser(a)
	p.ReleaseBrowser(b)

	next, err := p.GetBrowser(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if next.ID != b.ID {
		t.Fatalf("expected LIFO reuse of most-recently-released instance %s, got %s", b.ID, next.ID)
	}
}

func TestReleaseBrowser_UnknownInstanceIsNoOp(t *testing.T) {
	p := New(&fakeFactory{}, testParams(), zerolog.Nop())
	p.ReleaseBrowser(BrowserInstance{ID: "does-not-exist"})
	if s := p.Status(); s.Total != 0 {
		t.Fatalf("expected no state change, got %+v", s)
	}
}

func TestReleaseBrowser_UnhealthyDestroysInstance(t *testing.T) {
	factory := &fakeFactory{}
	p := New(factory, testParams(), zerolog.Nop())
	inst, _ := p.GetBrowser(context.Background())

	inst.Handle.(*fakeHandle).healthy.Store(false)
	p.ReleaseBrowser(inst)

	status := p.Status()
	if status.Metrics.Destroyed != 1 {
		t.Fatalf("expected 1 destroyed instance, got %+v", status)
	}
	if !inst.Handle.(*fakeHandle).closed.Load() {
		t.Fatal("expected underlying handle to be closed/killed")
	}
}

func TestCreateInstance_FallsBackThroughConfigs(t *testing.T) {
	factory := &fakeFactory{failFirst: 2} // optimal + first fallback fail
	p := New(factory, testParams(), zerolog.Nop())

	inst, err := p.GetBrowser(context.Background())
	if err != nil {
		t.Fatalf("expected success after falling back, got %v", err)
	}
	if inst.Handle == nil {
		t.Fatal("expected a handle")
	}
}

func TestCreateInstance_AllConfigsFail(t *testing.T) {
	factory := &fakeFactory{failFirst: 100}
	p := New(factory, testParams(), zerolog.Nop())

	_, err := p.GetBrowser(context.Background())
	if err == nil {
		t.Fatal("expected creation_failed error")
	}
}

func TestShutdown_IsIdempotentAndDestroysAll(t *testing.T) {
	p := New(&fakeFactory{}, testParams(), zerolog.Nop())
	a, _ := p.GetBrowser(context.Background())
	p.ReleaseBrowser(a)

	p.Shutdown()
	p.Shutdown() // must not panic or double-count

	if _, err := p.GetBrowser(context.Background()); err == nil {
		t.Fatal("expected shutting_down error after Shutdown")
	}
}

func TestSignalShrink_DestroysOneAvailableAboveMin(t *testing.T) {
	params := testParams()
	params.Min = 1
	params.Max = 3
	p := New(&fakeFactory{}, params, zerolog.Nop())

	a, _ := p.GetBrowser(context.Background())
	b, _ := p.GetBrowser(context.Background())
	p.ReleaseBrowser(a)
	p.ReleaseBrowser(b)

	before := p.Status().Total
	p.SignalShrink()
	after := p.Status().Total

	if after != before-1 {
		t.Fatalf("expected shrink to remove one instance, before=%d after=%d", before, after)
	}
}

func TestSignalShrink_NoopAtMin(t *testing.T) {
	params := testParams()
	params.Min = 1
	p := New(&fakeFactory{}, params, zerolog.Nop())
	a, _ := p.GetBrowser(context.Background())
	p.ReleaseBrowser(a)

	p.SignalShrink()
	if p.Status().Total != 1 {
		t.Fatal("expected no shrink at min")
	}
}

func TestEmergencyCleanupAll_ShutsDownRegisteredPools(t *testing.T) {
	p := New(&fakeFactory{}, testParams(), zerolog.Nop())
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	EmergencyCleanupAll()

	if _, err := p.GetBrowser(context.Background()); err == nil {
		t.Fatal("expected pool to be shut down by EmergencyCleanupAll")
	}
}
