// Package scheduler implements the batch conversion scheduler:
// parametric job expansion, dependency scheduling, dynamic
// concurrency, retry, dry run, cancellation, and reporting.
package scheduler

import (
	"context"
	"time"

	"github.com/printeer-go/printeer/internal/config"
)

// JobStatus is a BatchResult's terminal or in-flight state.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusReady     JobStatus = "ready"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusSkipped   JobStatus = "skipped"
)

// BatchJob is a single (possibly parametric) job description.
type BatchJob struct {
	ID           string
	URL          string
	Output       string
	Overrides    *config.RenderConfig
	Preset       string
	Variables    map[string]any // string (scalar) or []string (array-valued)
	Priority     int
	Dependencies []string
	RetryBudget  int
	Timeout      time.Duration
}

// BatchOptions controls dispatch.
type BatchOptions struct {
	Concurrency     int
	RetryAttempts   int
	ContinueOnError bool
	OutputDir       string
	DryRun          bool
	Cleanup         bool
}

// BatchResult is the outcome recorded for one expanded job.
type BatchResult struct {
	JobID      string
	Status     JobStatus
	StartAt    time.Time
	EndAt      time.Time
	DurationMs int64
	OutputPath string
	Err        error
	RetryCount int
}

// Insights are the resource/pool observations gathered across a
// batch's lifetime.
type Insights struct {
	PeakConcurrency      int
	AverageConcurrency   float64
	PeakInFlight         int
	PeakMemoryUsage      float64
	AverageMemoryUsage   float64
	BrowsersCreated      int64
	BrowsersReused       int64
}

// BatchReport is the aggregate result of RunBatch.
type BatchReport struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Duration  time.Duration
	Results   []BatchResult
	Insights  Insights
}

// Converter is the conversion collaborator the scheduler dispatches through.
// It is intentionally narrower than orchestrator.Orchestrator's full
// signature so this package can be exercised with a fake in tests.
type Converter interface {
	Convert(ctx context.Context, url, output string, overrides *config.RenderConfig) (OutputDescriptor, error)
}

// OutputDescriptor mirrors orchestrator.OutputDescriptor's fields the
// scheduler cares about.
type OutputDescriptor struct {
	Path string
}

// OptimizerSample is the subset of a resource sample the pool
// optimizer needs, mirrored locally to avoid importing internal/resource.
type OptimizerSample struct {
	MemoryUsage      float64
	BrowserInstances int
	ActiveRequests   int
}

// ResourceSampler is the resource-monitor collaborator supplying the latest sample.
type ResourceSampler interface {
	Sample() OptimizerSample
}

// PressureSubscriber is the resource-monitor collaborator the scheduler registers
// with to reactively shrink effective concurrency.
type PressureSubscriber interface {
	OnPressure(cb func(memory, cpu, disk bool))
}

// RequestCounter is the resource-monitor collaborator incremented/decremented
// around each dispatched job.
type RequestCounter interface {
	IncRequests()
	DecRequests()
}

// PoolStats exposes the browser pool counters the report's insights read.
type PoolStats interface {
	CreatedReused() (created, reused int64)
}
