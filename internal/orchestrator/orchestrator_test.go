package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/printeer-go/printeer/internal/browserpool"
	"github.com/printeer-go/printeer/internal/config"
	"github.com/printeer-go/printeer/internal/strategy"
)

type stubHandle struct{ id int }

type stubFactory struct {
	createErr error
	creates   int
}

func (f *stubFactory) Create(ctx context.Context, opts browserpool.LaunchOptions) (browserpool.Handle, error) {
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &stubHandle{id: f.creates}, nil
}
func (f *stubFactory) Validate(h browserpool.Handle) bool          { return true }
func (f *stubFactory) Close(h browserpool.Handle) error            { return nil }
func (f *stubFactory) KillProcess(h browserpool.Handle) error      { return nil }
func (f *stubFactory) GetVersion(h browserpool.Handle) string      { return "stub/1.0" }
func (f *stubFactory) OptimalLaunchOptions() browserpool.LaunchOptions { return "optimal" }
func (f *stubFactory) FallbackLaunchOptions() []browserpool.LaunchOptions {
	return []browserpool.LaunchOptions{"fallback"}
}

type stubRenderer struct {
	renderErr error
	calls     int
}

func (r *stubRenderer) Render(ctx context.Context, handle browserpool.Handle, url, output string, params RenderParams, deadline time.Time) (OutputDescriptor, error) {
	r.calls++
	if r.renderErr != nil {
		return OutputDescriptor{}, r.renderErr
	}
	return OutputDescriptor{Path: "/tmp/out.pdf", MediaType: "application/pdf", Bytes: 1234}, nil
}

func testConfig() config.EffectiveConfig {
	return config.EffectiveConfig{
		Render: config.RenderConfig{
			Wait: config.WaitConfig{Until: "load", Timeout: 5 * time.Second},
		},
	}
}

func TestConvert_OneshotStrategy(t *testing.T) {
	factory := &stubFactory{}
	renderer := &stubRenderer{}
	o := &Orchestrator{Factory: factory, Renderer: renderer, Log: zerolog.Nop()}

	desc, err := o.Convert(context.Background(), "http://example.test", "/tmp/out.pdf", testConfig(), nil, strategy.Signals{Override: strategy.OverrideOneshot})
	if err != nil {
		t.Fatal(err)
	}
	if desc.MediaType != "application/pdf" {
		t.Fatalf("expected pdf media type, got %s", desc.MediaType)
	}
	if factory.creates != 1 {
		t.Fatalf("expected exactly 1 browser created for oneshot, got %d", factory.creates)
	}
}

func TestConvert_RejectsBlockedDomain(t *testing.T) {
	o := &Orchestrator{Factory: &stubFactory{}, Renderer: &stubRenderer{}, Log: zerolog.Nop()}
	cfg := testConfig()
	cfg.Security.BlockedDomains = []string{"example.test"}
	_, err := o.Convert(context.Background(), "http://example.test", "/tmp/out.pdf", cfg, nil, strategy.Signals{})
	if err == nil {
		t.Fatal("expected url_blocked error")
	}
}

func TestConvert_AllowlistPermitsMatchingDomain(t *testing.T) {
	factory := &stubFactory{}
	o := &Orchestrator{Factory: factory, Renderer: &stubRenderer{}, Log: zerolog.Nop()}
	cfg := testConfig()
	cfg.Security.AllowedDomains = []string{"*.example.test"}
	_, err := o.Convert(context.Background(), "http://a.example.test", "/tmp/out.pdf", cfg, nil, strategy.Signals{Override: strategy.OverrideOneshot})
	if err != nil {
		t.Fatalf("expected allowlisted subdomain to pass, got %v", err)
	}
}

func TestConvert_RejectsUnsupportedExtension(t *testing.T) {
	o := &Orchestrator{Factory: &stubFactory{}, Renderer: &stubRenderer{}, Log: zerolog.Nop()}
	_, err := o.Convert(context.Background(), "http://example.test", "/tmp/out.exe", testConfig(), nil, strategy.Signals{})
	if err == nil {
		t.Fatal("expected bad_output_path error")
	}
}

func TestConvert_PooledReuse(t *testing.T) {
	factory := &stubFactory{}
	renderer := &stubRenderer{}
	pool := browserpool.New(factory, browserpool.Params{Min: 0, Max: 1, AcquireTimeout: time.Second}, zerolog.Nop())
	o := &Orchestrator{Pool: pool, Factory: factory, Renderer: renderer, Log: zerolog.Nop()}

	sig := strategy.Signals{Override: strategy.OverridePool}
	if _, err := o.Convert(context.Background(), "http://example.test", "/tmp/a.pdf", testConfig(), nil, sig); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Convert(context.Background(), "http://example.test", "/tmp/b.pdf", testConfig(), nil, sig); err != nil {
		t.Fatal(err)
	}

	status := pool.Status()
	if status.Metrics.Created != 1 || status.Metrics.Reused < 1 {
		t.Fatalf("expected 1 created and >=1 reused, got %+v", status.Metrics)
	}
}

func TestConvert_PoolAcquisitionFailureFallsBackToOneshot(t *testing.T) {
	factory := &stubFactory{}
	renderer := &stubRenderer{}
	// Max 0 leaves nothing to acquire, so every acquire times out after AcquireTimeout.
	pool := browserpool.New(factory, browserpool.Params{Min: 0, Max: 0, AcquireTimeout: 10 * time.Millisecond}, zerolog.Nop())
	o := &Orchestrator{Pool: pool, Factory: factory, Renderer: renderer, Log: zerolog.Nop()}

	desc, err := o.Convert(context.Background(), "http://example.test", "/tmp/out.pdf", testConfig(), nil, strategy.Signals{Override: strategy.OverridePool})
	if err != nil {
		t.Fatalf("expected fallback to oneshot to succeed, got %v", err)
	}
	if desc.Path != "/tmp/out.pdf" {
		t.Fatalf("unexpected descriptor %+v", desc)
	}
	if factory.creates != 1 {
		t.Fatalf("expected exactly 1 oneshot creation after fallback, got %d", factory.creates)
	}
}

func TestConvert_RendererFailureUnconditionallyReleases(t *testing.T) {
	factory := &stubFactory{}
	renderer := &stubRenderer{renderErr: errors.New("boom")}
	pool := browserpool.New(factory, browserpool.Params{Min: 0, Max: 1, AcquireTimeout: time.Second}, zerolog.Nop())
	o := &Orchestrator{Pool: pool, Factory: factory, Renderer: renderer, Log: zerolog.Nop()}

	_, err := o.Convert(context.Background(), "http://example.test", "/tmp/out.pdf", testConfig(), nil, strategy.Signals{Override: strategy.OverridePool})
	if err == nil {
		t.Fatal("expected renderer_failed error to propagate")
	}

	status := pool.Status()
	if status.Busy != 0 {
		t.Fatalf("expected browser to be released back to pool despite render failure, got busy=%d", status.Busy)
	}
}
