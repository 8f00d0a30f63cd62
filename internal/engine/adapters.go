// Package engine wires every long-running collaborator into one
// process lifecycle: config resolution, resource monitoring, cleanup
// scheduling, degradation enforcement, the browser pool, the
// orchestrator, and the batch scheduler.
package engine

import (
	"context"

	"github.com/printeer-go/printeer/internal/config"
	"github.com/printeer-go/printeer/internal/orchestrator"
	"github.com/printeer-go/printeer/internal/resource"
	"github.com/printeer-go/printeer/internal/scheduler"
	"github.com/printeer-go/printeer/internal/strategy"
)

// converterAdapter narrows orchestrator.Orchestrator's full Convert
// signature down to scheduler.Converter, closing over the resolver so
// every dispatched job converts against the current effective config.
type converterAdapter struct {
	orch     *orchestrator.Orchestrator
	resolver *config.Resolver
}

func (a *converterAdapter) Convert(ctx context.Context, url, output string, overrides *config.RenderConfig) (scheduler.OutputDescriptor, error) {
	desc, err := a.orch.Convert(ctx, url, output, a.resolver.Get(), overrides, strategy.Signals{Override: strategy.OverridePool})
	if err != nil {
		return scheduler.OutputDescriptor{}, err
	}
	return scheduler.OutputDescriptor{Path: desc.Path}, nil
}

// samplerAdapter narrows resource.Monitor's richer Sample down to the
// scheduler's pooloptimizer-facing view.
type samplerAdapter struct {
	mon *resource.Monitor
}

func (a *samplerAdapter) Sample() scheduler.OptimizerSample {
	s := a.mon.Latest()
	return scheduler.OptimizerSample{
		MemoryUsage:      s.MemoryUsage,
		BrowserInstances: s.BrowserInstances,
		ActiveRequests:   s.ActiveRequests,
	}
}

// pressureAdapter translates resource.Monitor's Pressure struct
// callback into the scheduler's three positional bools.
type pressureAdapter struct {
	mon *resource.Monitor
}

func (a *pressureAdapter) OnPressure(cb func(memory, cpu, disk bool)) {
	a.mon.OnPressure(func(p resource.Pressure) {
		cb(p.Memory, p.CPU, p.Disk)
	})
}
