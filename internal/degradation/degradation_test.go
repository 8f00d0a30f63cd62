package degradation

import (
	"testing"

	"github.com/rs/zerolog"
)

type fakePool struct{ shrinks int }

func (p *fakePool) SignalShrink() { p.shrinks++ }

type fakeMem struct{ cleanups int }

func (m *fakeMem) CleanupMemory() { m.cleanups++ }

type fakeTemp struct{ cleanups int }

func (t *fakeTemp) CleanupTempFiles() int { t.cleanups++; return 0 }

func testLimits() Limits {
	return Limits{
		MaxMemoryMB:           512,
		TotalMemoryMB:         1024,
		MaxCPUPercent:         80,
		MaxConcurrentRequests: 5,
		MaxBrowserInstances:   3,
	}
}

func TestEnforce_MemoryViolation_RequestsGCAndShrink(t *testing.T) {
	pool, mem, temp := &fakePool{}, &fakeMem{}, &fakeTemp{}
	e := New(true, pool, mem, temp, 10, 1, zerolog.Nop())

	v := e.Enforce(Sample{MemoryUsage: 0.9}, testLimits(), false)

	if !v.Memory {
		t.Fatal("expected memory violation detected")
	}
	if mem.cleanups != 1 {
		t.Fatalf("expected 1 GC request, got %d", mem.cleanups)
	}
	if pool.shrinks != 1 {
		t.Fatalf("expected 1 shrink signal, got %d", pool.shrinks)
	}
}

func TestEnforce_CPUOrConcurrencyViolation_SetsThrottling(t *testing.T) {
	pool, mem, temp := &fakePool{}, &fakeMem{}, &fakeTemp{}
	e := New(true, pool, mem, temp, 10, 1, zerolog.Nop())

	e.Enforce(Sample{CPUUsage: 0.95}, testLimits(), false)
	if !e.Flags.Throttling() {
		t.Fatal("expected throttling flag set on CPU violation")
	}

	e2 := New(true, pool, mem, temp, 10, 1, zerolog.Nop())
	e2.Enforce(Sample{ActiveRequests: 10}, testLimits(), false)
	if !e2.Flags.Throttling() {
		t.Fatal("expected throttling flag set on concurrency violation")
	}
}

func TestEnforce_BrowserViolation_SignalsShrink(t *testing.T) {
	pool, mem, temp := &fakePool{}, &fakeMem{}, &fakeTemp{}
	e := New(true, pool, mem, temp, 10, 1, zerolog.Nop())

	v := e.Enforce(Sample{BrowserInstances: 10}, testLimits(), false)
	if !v.Browser {
		t.Fatal("expected browser violation detected")
	}
	if pool.shrinks != 1 {
		t.Fatalf("expected 1 shrink signal for browser-count violation, got %d", pool.shrinks)
	}
}

func TestEnforce_DiskPressure_TriggersCleanup(t *testing.T) {
	pool, mem, temp := &fakePool{}, &fakeMem{}, &fakeTemp{}
	e := New(true, pool, mem, temp, 10, 1, zerolog.Nop())

	e.Enforce(Sample{}, testLimits(), true)
	if temp.cleanups != 1 {
		t.Fatalf("expected 1 temp cleanup on disk pressure, got %d", temp.cleanups)
	}
}

func TestEnforce_DegradationDisabled_StillRequestsGCButNoOtherAction(t *testing.T) {
	pool, mem, temp := &fakePool{}, &fakeMem{}, &fakeTemp{}
	e := New(false, pool, mem, temp, 10, 1, zerolog.Nop())

	e.Enforce(Sample{MemoryUsage: 0.9, CPUUsage: 0.95, BrowserInstances: 10}, testLimits(), true)

	if mem.cleanups != 1 {
		t.Fatalf("expected GC still requested when disabled, got %d", mem.cleanups)
	}
	if pool.shrinks != 0 {
		t.Fatalf("expected no shrink signal when degradation disabled, got %d", pool.shrinks)
	}
	if e.Flags.Throttling() {
		t.Fatal("expected no throttling flag when degradation disabled")
	}
	if temp.cleanups != 0 {
		t.Fatalf("expected no temp cleanup when degradation disabled, got %d", temp.cleanups)
	}
}

func TestFlags_MonotonicUntilReset(t *testing.T) {
	pool, mem, temp := &fakePool{}, &fakeMem{}, &fakeTemp{}
	e := New(true, pool, mem, temp, 10, 1, zerolog.Nop())

	e.Enforce(Sample{CPUUsage: 0.95}, testLimits(), false)
	e.Enforce(Sample{}, testLimits(), false)
	if !e.Flags.Throttling() {
		t.Fatal("expected flag to remain set after a clean sample, until explicit reset")
	}

	e.ResetDegradation()
	if e.Flags.Throttling() || e.Flags.QualityReduced() || e.Flags.NonEssentialDisabled() {
		t.Fatal("expected ResetDegradation to clear all flags")
	}
}

func TestAdmit_PacesOnceThrottling(t *testing.T) {
	pool, mem, temp := &fakePool{}, &fakeMem{}, &fakeTemp{}
	e := New(true, pool, mem, temp, 0, 1, zerolog.Nop())

	if !e.Admit() {
		t.Fatal("expected admission to proceed before throttling is set")
	}

	e.Enforce(Sample{CPUUsage: 0.95}, testLimits(), false)
	if !e.Admit() {
		t.Fatal("expected first admission to consume the single burst token")
	}
	if e.Admit() {
		t.Fatal("expected subsequent admission to be paced once burst is exhausted")
	}
}
