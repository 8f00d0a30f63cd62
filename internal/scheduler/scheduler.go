package scheduler

import (
	"container/heap"
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/printeer-go/printeer/internal/errs"
	"github.com/printeer-go/printeer/internal/pooloptimizer"
)

const (
	baseBackoff = 250 * time.Millisecond
	maxBackoff  = 8 * time.Second
)

// Scheduler implements the batch dispatch loop.
type Scheduler struct {
	Converter Converter
	Sampler   ResourceSampler
	Pressure  PressureSubscriber
	Requests  RequestCounter
	PoolStats PoolStats
	PoolMin   int
	PoolMax   int
	Log       zerolog.Logger
}

type readyItem struct {
	id       string
	priority int
	seq      int64
}

type readyHeap []*readyItem

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority // higher priority first
	}
	return h[i].seq < h[j].seq // insertion order ascending
}
func (h readyHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x any)        { *h = append(*h, x.(*readyItem)) }
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type jobState struct {
	job           expandedJob
	status        JobStatus
	remainingDeps int
	retryCount    int
	startAt       time.Time
	endAt         time.Time
	outputPath    string
	err           error
}

// run coordinates expansion, validation, and (unless dry-run)
// dispatch through a single-goroutine loop so all shared state
// (heap, states, inFlight, effective concurrency) needs no locking.
type run struct {
	s        *Scheduler
	opts     BatchOptions
	states   map[string]*jobState
	dependents map[string][]string
	order    []string // expanded job ids in expansion order, for report ordering

	ready   readyHeap
	seqGen  int64
	inFlight int

	effConcurrency int
	pressureScale  float64 // multiplicative reduction in (0,1]

	aborted error

	completions chan string

	peakConcurrency    int
	concurrencySamples []int
	peakInFlight       int
	peakMemory         float64
	memorySamples      []float64

	mu sync.Mutex // guards pressureScale only (set from async pressure callback)
}

// RunBatch is the public batch entry point.
func (s *Scheduler) RunBatch(ctx context.Context, jobs []BatchJob, opts BatchOptions) (BatchReport, error) {
	started := time.Now()

	expanded, err := expand(jobs)
	if err != nil {
		return BatchReport{}, err
	}
	dependents, err := buildGraph(expanded)
	if err != nil {
		return BatchReport{}, err
	}

	if opts.DryRun {
		return s.dryRunReport(expanded, started), nil
	}

	r := &run{
		s:           s,
		opts:        opts,
		states:      make(map[string]*jobState, len(expanded)),
		dependents:  dependents,
		completions: make(chan string, len(expanded)),
		pressureScale: 1.0,
	}
	for _, ej := range expanded {
		r.order = append(r.order, ej.ID)
		r.states[ej.ID] = &jobState{job: ej, status: StatusPending, remainingDeps: len(ej.Dependencies)}
	}

	if s.Pressure != nil {
		s.Pressure.OnPressure(func(memory, cpu, disk bool) {
			r.mu.Lock()
			if memory || cpu {
				r.pressureScale = math.Max(0.25, r.pressureScale*0.5)
			} else {
				r.pressureScale = 1.0
			}
			r.mu.Unlock()
		})
	}

	for id, st := range r.states {
		if st.remainingDeps == 0 {
			r.pushReady(id, st.job.Priority)
		}
	}

	r.dispatchLoop(ctx)

	return r.report(started), r.aborted
}

func (r *run) pushReady(id string, priority int) {
	r.seqGen++
	heap.Push(&r.ready, &readyItem{id: id, priority: priority, seq: r.seqGen})
}

func (r *run) computeEffectiveConcurrency() int {
	sample := pooloptimizer.Sample{}
	if r.s.Sampler != nil {
		os := r.s.Sampler.Sample()
		sample = pooloptimizer.Sample{MemoryUsage: os.MemoryUsage, BrowserInstances: os.BrowserInstances, ActiveRequests: os.ActiveRequests}
	}
	params := pooloptimizer.Params{Min: r.s.PoolMin, Max: r.s.PoolMax, HighMemoryThreshold: 0.8, DemandDivisor: 2}
	optimal := pooloptimizer.OptimalPoolSize(sample, params)

	r.mu.Lock()
	scale := r.pressureScale
	r.mu.Unlock()

	configured := r.opts.Concurrency
	if configured <= 0 {
		configured = 1
	}
	eff := configured
	if optimal > 0 && optimal < eff {
		eff = optimal
	}
	eff = int(math.Floor(float64(eff) * scale))
	if eff < 1 {
		eff = 1
	}
	return eff
}

func (r *run) dispatchLoop(ctx context.Context) {
	for {
		r.effConcurrency = r.computeEffectiveConcurrency()
		if r.effConcurrency > r.peakConcurrency {
			r.peakConcurrency = r.effConcurrency
		}
		r.concurrencySamples = append(r.concurrencySamples, r.effConcurrency)
		if r.s.Sampler != nil {
			if mem := r.s.Sampler.Sample().MemoryUsage; mem > r.peakMemory {
				r.peakMemory = mem
			}
			r.memorySamples = append(r.memorySamples, r.s.Sampler.Sample().MemoryUsage)
		}
		if r.inFlight > r.peakInFlight {
			r.peakInFlight = r.inFlight
		}

		cancelled := ctx.Err() != nil

		for !cancelled && r.inFlight < r.effConcurrency && r.ready.Len() > 0 {
			item := heap.Pop(&r.ready).(*readyItem)
			st := r.states[item.id]
			r.dispatch(ctx, st)
		}

		if r.ready.Len() == 0 && r.inFlight == 0 {
			r.markRemainingSkipped()
			return
		}

		if r.inFlight == 0 && cancelled {
			r.markRemainingSkipped()
			return
		}

		id := <-r.completions
		if id != "" {
			r.onComplete(ctx, id)
		}

		if r.aborted != nil {
			r.drainInFlight()
			r.markRemainingSkipped()
			return
		}
	}
}

func (r *run) dispatch(ctx context.Context, st *jobState) {
	st.status = StatusRunning
	st.startAt = time.Now()
	r.inFlight++
	if r.s.Requests != nil {
		r.s.Requests.IncRequests()
	}

	go func() {
		jobCtx := ctx
		var cancel context.CancelFunc
		if st.job.Timeout > 0 {
			jobCtx, cancel = context.WithTimeout(ctx, st.job.Timeout)
			defer cancel()
		}
		desc, err := r.s.Converter.Convert(jobCtx, st.job.URL, st.job.Output, st.job.Overrides)
		st.endAt = time.Now()
		if r.s.Requests != nil {
			r.s.Requests.DecRequests()
		}
		if err != nil {
			st.err = err
			st.status = StatusFailed
		} else {
			st.status = StatusCompleted
			st.outputPath = desc.Path
		}
		r.completions <- st.job.ID
	}()
}

func (r *run) onComplete(ctx context.Context, id string) {
	r.inFlight--
	st := r.states[id]

	if st.status == StatusReady {
		// A retry's backoff has elapsed; requeue it on the loop goroutine.
		r.pushReady(id, st.job.Priority)
		return
	}

	if st.status == StatusFailed {
		budget := st.job.RetryBudget
		if budget <= 0 {
			budget = r.opts.RetryAttempts
		}
		if st.retryCount < budget {
			st.retryCount++
			delay := backoffFor(st.retryCount)
			r.s.Log.Debug().Str("job_id", id).Int("retry", st.retryCount).Dur("delay", delay).Msg("retrying failed job")
			// The job holds its slot while it waits out the backoff, so the
			// loop cannot finish before the retry is requeued.
			st.status = StatusReady
			r.inFlight++
			time.AfterFunc(delay, func() { r.completions <- id })
			return
		}

		if !r.opts.ContinueOnError {
			r.aborted = errs.NewBatchAbortedError(id, st.err)
			return
		}
		r.propagateFailure(id)
		return
	}

	// Completed: release dependents whose deps are now all satisfied.
	for _, depID := range r.dependents[id] {
		dst := r.states[depID]
		if dst == nil || dst.status != StatusPending {
			continue
		}
		dst.remainingDeps--
		if dst.remainingDeps == 0 {
			r.pushReady(depID, dst.job.Priority)
		}
	}
}

func (r *run) propagateFailure(id string) {
	for _, depID := range r.dependents[id] {
		dst := r.states[depID]
		if dst == nil || dst.status == StatusCompleted || dst.status == StatusFailed {
			continue
		}
		dst.status = StatusSkipped
		r.propagateFailure(depID)
	}
}

func (r *run) drainInFlight() {
	for r.inFlight > 0 {
		id := <-r.completions
		if id != "" {
			r.inFlight--
		}
	}
}

func (r *run) markRemainingSkipped() {
	for _, st := range r.states {
		if st.status == StatusPending || st.status == StatusReady {
			st.status = StatusSkipped
		}
	}
}

func backoffFor(attempt int) time.Duration {
	d := baseBackoff * time.Duration(1<<uint(attempt-1))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (r *run) report(started time.Time) BatchReport {
	rep := BatchReport{Duration: time.Since(started)}
	for _, id := range r.order {
		st := r.states[id]
		result := BatchResult{
			JobID:      id,
			Status:     st.status,
			StartAt:    st.startAt,
			EndAt:      st.endAt,
			OutputPath: st.outputPath,
			Err:        st.err,
			RetryCount: st.retryCount,
		}
		if !st.startAt.IsZero() && !st.endAt.IsZero() {
			result.DurationMs = st.endAt.Sub(st.startAt).Milliseconds()
		}
		rep.Results = append(rep.Results, result)
		rep.Total++
		switch st.status {
		case StatusCompleted:
			rep.Completed++
		case StatusFailed:
			rep.Failed++
		case StatusSkipped:
			rep.Skipped++
		}
	}

	rep.Insights = Insights{
		PeakConcurrency:    r.peakConcurrency,
		AverageConcurrency: average(r.concurrencySamples),
		PeakInFlight:       r.peakInFlight,
		PeakMemoryUsage:    r.peakMemory,
		AverageMemoryUsage: averageF(r.memorySamples),
	}
	if r.s.PoolStats != nil {
		rep.Insights.BrowsersCreated, rep.Insights.BrowsersReused = r.s.PoolStats.CreatedReused()
	}
	return rep
}

func (s *Scheduler) dryRunReport(expanded []expandedJob, started time.Time) BatchReport {
	rep := BatchReport{Duration: time.Since(started), Total: len(expanded)}
	for _, ej := range expanded {
		rep.Results = append(rep.Results, BatchResult{JobID: ej.ID, Status: StatusSkipped})
		rep.Skipped++
	}
	return rep
}

func average(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func averageF(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
