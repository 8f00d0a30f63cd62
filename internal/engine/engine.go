package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/printeer-go/printeer/internal/browserpool"
	"github.com/printeer-go/printeer/internal/cleanup"
	"github.com/printeer-go/printeer/internal/config"
	"github.com/printeer-go/printeer/internal/degradation"
	"github.com/printeer-go/printeer/internal/orchestrator"
	"github.com/printeer-go/printeer/internal/resource"
	"github.com/printeer-go/printeer/internal/scheduler"
)

// Engine owns every long-running collaborator for one
// process: the config resolver, the resource monitor, the cleanup
// scheduler, the degradation enforcer, the browser pool, the
// conversion orchestrator, and the batch scheduler.
type Engine struct {
	Resolver    *config.Resolver
	Monitor     *resource.Monitor
	Cleanup     *cleanup.Manager
	Degradation *degradation.Enforcer
	Pool        *browserpool.Pool
	Orchestrator *orchestrator.Orchestrator
	Scheduler   *scheduler.Scheduler

	log zerolog.Logger
}

// New resolves configuration and wires every collaborator together.
// newFactory and renderer are the renderer-specific adapters (see
// pkg/rodbrowser for the reference implementation); they are supplied
// by the caller so this package never imports a concrete browser
// automation library directly.
// newFactory is a constructor rather than a built value because the
// factory needs the resolved browser config this function loads.
func New(cliArgs []string, newFactory func(config.BrowserConfig, zerolog.Logger) browserpool.Factory, renderer orchestrator.Renderer, log zerolog.Logger) (*Engine, error) {
	resolver, err := config.Load(cliArgs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := resolver.Get()
	factory := newFactory(cfg.Browser, log)

	tempDir := os.TempDir()
	thresholds := resource.Thresholds{
		MemoryWarn:     cfg.Thresholds.MemoryWarn,
		MemoryCritical: cfg.Thresholds.MemoryCritical,
		CPUWarn:        cfg.Thresholds.CPUWarn,
		CPUCritical:    cfg.Thresholds.CPUCritical,
		DiskWarn:       cfg.Thresholds.DiskWarn,
		DiskCritical:   cfg.Thresholds.DiskCritical,
	}
	monitor := resource.New(thresholds, tempDir, log)

	cleanupMgr := cleanup.New(tempDir, log)

	pool := browserpool.New(factory, browserpool.Params{
		Min:             cfg.Browser.Pool.Min,
		Max:             cfg.Browser.Pool.Max,
		AcquireTimeout:  30 * time.Second,
		IdleTimeout:     time.Duration(cfg.Browser.Pool.IdleTimeoutMs) * time.Millisecond,
		CleanupInterval: time.Duration(cfg.Browser.Pool.CleanupIntervalMs) * time.Millisecond,
		GracefulClose:   10 * time.Second,
	}, log)

	enforcer := degradation.New(true, pool, cleanupMgr, cleanupMgr, 10, 5, log)

	orch := &orchestrator.Orchestrator{Pool: pool, Factory: factory, Renderer: renderer, Log: log}

	sched := &scheduler.Scheduler{
		Converter: &converterAdapter{orch: orch, resolver: resolver},
		Sampler:   &samplerAdapter{mon: monitor},
		Pressure:  &pressureAdapter{mon: monitor},
		Requests:  monitor,
		PoolStats: pool,
		PoolMin:   cfg.Browser.Pool.Min,
		PoolMax:   cfg.Browser.Pool.Max,
		Log:       log,
	}

	e := &Engine{
		Resolver:     resolver,
		Monitor:      monitor,
		Cleanup:      cleanupMgr,
		Degradation:  enforcer,
		Pool:         pool,
		Orchestrator: orch,
		Scheduler:    sched,
		log:          log,
	}

	monitor.OnPressure(func(p resource.Pressure) {
		e.enforceLimits(p)
	})

	return e, nil
}

// enforceLimits runs the degradation enforcement action list against
// the monitor's latest sample; the monitor calls it on every tick.
func (e *Engine) enforceLimits(p resource.Pressure) {
	cfg := e.Resolver.Get()
	sample := e.Monitor.Latest()

	limits := degradation.Limits{
		MaxMemoryMB:           cfg.Resources.MaxMemoryMB,
		TotalMemoryMB:         totalMemoryMB(),
		MaxCPUPercent:         cfg.Resources.MaxCPUPercent,
		MaxConcurrentRequests: cfg.Resources.MaxConcurrentRequests,
		MaxBrowserInstances:   cfg.Resources.MaxBrowserInstances,
	}
	e.Degradation.Enforce(degradation.Sample{
		MemoryUsage:      sample.MemoryUsage,
		CPUUsage:         sample.CPUUsage,
		BrowserInstances: sample.BrowserInstances,
		ActiveRequests:   sample.ActiveRequests,
	}, limits, p.Disk)
}

func totalMemoryMB() int {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return int(vm.Total / (1024 * 1024))
}

// Run starts every background actor (resource monitor, cleanup cron,
// config hot-reload watcher, browser pool warm-up) behind one
// cancellable oklog/run group, blocking until ctx is canceled or a
// signal arrives; then every actor is interrupted, in the order the
// actors were added, and Run returns once all of them have stopped.
func (e *Engine) Run(ctx context.Context) error {
	var g run.Group

	runCtx, cancelRun := context.WithCancel(ctx)
	g.Add(func() error {
		<-runCtx.Done()
		return nil
	}, func(error) {
		cancelRun()
	})

	{
		term := make(chan os.Signal, 1)
		cancel := make(chan struct{})
		signal.Notify(term, os.Interrupt, syscall.SIGTERM)
		g.Add(func() error {
			select {
			case sig := <-term:
				e.log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			case <-cancel:
			}
			return nil
		}, func(error) {
			close(cancel)
		})
	}

	{
		g.Add(func() error {
			e.Monitor.Start(5 * time.Second)
			<-runCtx.Done()
			return nil
		}, func(error) {
			e.Monitor.Stop()
		})
	}

	{
		g.Add(func() error {
			e.Cleanup.ScheduleCleanup(10 * time.Minute)
			<-runCtx.Done()
			return nil
		}, func(error) {
			e.Cleanup.StopScheduled()
		})
	}

	{
		g.Add(func() error {
			if err := e.Resolver.StartWatch(); err != nil {
				e.log.Warn().Err(err).Msg("config hot-reload watch unavailable")
			}
			<-runCtx.Done()
			return nil
		}, func(error) {
			_ = e.Resolver.Close()
		})
	}

	{
		poolCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			if err := e.Pool.Initialize(poolCtx); err != nil {
				return fmt.Errorf("initialize browser pool: %w", err)
			}
			<-poolCtx.Done()
			return nil
		}, func(error) {
			cancel()
			e.Pool.Shutdown()
		})
	}

	return g.Run()
}
