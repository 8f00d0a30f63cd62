// Package degradation detects resource-limit violations and toggles
// reversible degradation flags in response.
package degradation

import (
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Limits mirror the configured resources block plus the
// host's total memory, needed to turn maxMemoryMB into a fraction
// comparable against a resource.Sample's MemoryUsage fraction.
type Limits struct {
	MaxMemoryMB           int
	TotalMemoryMB         int
	MaxCPUPercent         int
	MaxConcurrentRequests int
	MaxBrowserInstances   int
}

// Sample is the subset of a resource.Sample the enforcer needs.
type Sample struct {
	MemoryUsage      float64
	CPUUsage         float64
	BrowserInstances int
	ActiveRequests   int
}

// Violations reports which limits the latest sample breaches.
type Violations struct {
	Memory      bool
	CPU         bool
	Concurrency bool
	Browser     bool
}

func (v Violations) Any() bool { return v.Memory || v.CPU || v.Concurrency || v.Browser }

// Detect reports which limits a sample violates.
func Detect(s Sample, l Limits) Violations {
	memFrac := 1.0
	if l.TotalMemoryMB > 0 {
		memFrac = float64(l.MaxMemoryMB) / float64(l.TotalMemoryMB)
	}
	return Violations{
		Memory:      s.MemoryUsage > memFrac,
		CPU:         s.CPUUsage > float64(l.MaxCPUPercent)/100.0,
		Concurrency: s.ActiveRequests > l.MaxConcurrentRequests,
		Browser:     s.BrowserInstances > l.MaxBrowserInstances,
	}
}

// Flags holds the three reversible degradation booleans.
// Lifecycle: a flag, once set, stays set until an explicit Reset.
// Enforce sets only throttling (on a CPU or concurrency violation);
// nothing in this package sets qualityReduced or nonEssentialDisabled.
type Flags struct {
	throttling          atomic.Bool
	qualityReduced      atomic.Bool
	nonEssentialDisabled atomic.Bool
}

func (f *Flags) Throttling() bool           { return f.throttling.Load() }
func (f *Flags) QualityReduced() bool       { return f.qualityReduced.Load() }
func (f *Flags) NonEssentialDisabled() bool { return f.nonEssentialDisabled.Load() }

// Reset clears all three flags.
func (f *Flags) Reset() {
	f.throttling.Store(false)
	f.qualityReduced.Store(false)
	f.nonEssentialDisabled.Store(false)
}

// PoolShrinker is the browser-pool collaborator signaled on memory/browser-count
// violations.
type PoolShrinker interface {
	SignalShrink()
}

// MemoryReclaimer is the cleanup collaborator invoked on memory violations.
type MemoryReclaimer interface {
	CleanupMemory()
}

// TempCleaner is the cleanup collaborator invoked on disk pressure.
type TempCleaner interface {
	CleanupTempFiles() int
}

// Enforcer runs the enforcement actions against a sample.
type Enforcer struct {
	Enabled bool

	Pool    PoolShrinker
	Memory  MemoryReclaimer
	TempDir TempCleaner

	Flags   Flags
	Limiter *rate.Limiter // admission pacing once Throttling is set

	log zerolog.Logger
}

// New constructs an Enforcer. limiterRPS/burst configure the token
// bucket consulted by Admit once throttling is active.
func New(enabled bool, pool PoolShrinker, mem MemoryReclaimer, temp TempCleaner, limiterRPS float64, burst int, logger zerolog.Logger) *Enforcer {
	return &Enforcer{
		Enabled: enabled,
		Pool:    pool,
		Memory:  mem,
		TempDir: temp,
		Limiter: rate.NewLimiter(rate.Limit(limiterRPS), burst),
		log:     logger,
	}
}

// Enforce runs the ordered action list against sample/limits
// and diskPressure (sourced from the resource monitor's Pressure.Disk).
func (e *Enforcer) Enforce(s Sample, l Limits, diskPressure bool) Violations {
	v := Detect(s, l)

	if v.Memory {
		if e.Memory != nil {
			e.Memory.CleanupMemory()
		}
		if e.Enabled && e.Pool != nil {
			e.Pool.SignalShrink()
		}
	}

	if !e.Enabled {
		return v
	}

	if v.CPU || v.Concurrency {
		e.Flags.throttling.Store(true)
	}

	if v.Browser && e.Pool != nil {
		e.Pool.SignalShrink()
	}

	if diskPressure && e.TempDir != nil {
		e.TempDir.CleanupTempFiles()
	}

	return v
}

// ResetDegradation clears all degradation flags.
func (e *Enforcer) ResetDegradation() {
	e.Flags.Reset()
}

// Admit reports whether a new admission should proceed immediately;
// once Throttling is set, admission is paced through the token bucket.
func (e *Enforcer) Admit() bool {
	if !e.Flags.Throttling() {
		return true
	}
	return e.Limiter.Allow()
}
