package resource

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

const historySize = 20

// Monitor samples host resources on a ticker and evaluates pressure
// each tick, publishing to subscribers synchronously.
type Monitor struct {
	thresholds Thresholds
	tempDir    string
	log        zerolog.Logger

	running   atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup

	mu      sync.RWMutex // guards history and latest; single-writer (tick loop), multi-reader
	history []Sample
	latest  Sample

	browsers atomic.Int64
	requests atomic.Int64

	subMu       sync.Mutex
	subscribers []func(Pressure)

	lastCPUTimes cpu.TimesStat
	haveLastCPU  bool
}

// New constructs a Monitor. tempDir is the filesystem whose usage
// represents "disk usage".
func New(thresholds Thresholds, tempDir string, logger zerolog.Logger) *Monitor {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Monitor{thresholds: thresholds, tempDir: tempDir, log: logger}
}

// Start begins the sampling loop. Re-starting an already-running
// monitor is a no-op.
func (m *Monitor) Start(interval time.Duration) {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	m.stopCh = make(chan struct{})
	m.wg.Add(1)
	go m.loop(interval)
}

// Stop joins the sampling loop. Safe to call when not running.
func (m *Monitor) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) loop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.tick()
	for {
		select {
		case <-ticker.C:
			m.tick()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) tick() {
	sample, err := m.sample()
	if err != nil {
		m.log.Warn().Err(err).Msg("resource sampling degraded to last good sample")
		m.mu.Lock()
		sample = m.latest
		sample.Degraded = true
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.latest = sample
	m.history = append(m.history, sample)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
	m.mu.Unlock()

	pressure := Evaluate(sample, m.thresholds)
	m.publish(pressure)
}

func (m *Monitor) sample() (Sample, error) {
	now := time.Now()

	memUsage := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsage = vm.UsedPercent / 100.0
	} else {
		return Sample{}, err
	}

	cpuUsage := 0.0
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuUsage = percents[0] / 100.0
	}

	diskUsage := 0.0
	if du, err := disk.Usage(m.tempDir); err == nil {
		diskUsage = du.UsedPercent / 100.0
	}

	return Sample{
		MemoryUsage:      memUsage,
		CPUUsage:         cpuUsage,
		DiskUsage:        diskUsage,
		BrowserInstances: int(m.browsers.Load()),
		ActiveRequests:   int(m.requests.Load()),
		Timestamp:        now,
	}, nil
}

// Latest returns the most recent sample.
func (m *Monitor) Latest() Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// History returns a snapshot of the bounded sample ring.
func (m *Monitor) History() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Sample, len(m.history))
	copy(out, m.history)
	return out
}

// PressureNow evaluates pressure against the latest sample.
func (m *Monitor) PressureNow() Pressure {
	return Evaluate(m.Latest(), m.thresholds)
}

// OnPressure registers a subscriber invoked synchronously on every
// tick. Panics inside a subscriber are recovered and logged so one bad
// subscriber cannot kill monitoring.
func (m *Monitor) OnPressure(cb func(Pressure)) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subscribers = append(m.subscribers, cb)
}

func (m *Monitor) publish(p Pressure) {
	m.subMu.Lock()
	subs := append([]func(Pressure){}, m.subscribers...)
	m.subMu.Unlock()

	for _, cb := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error().Interface("panic", r).Msg("pressure subscriber panicked")
				}
			}()
			cb(p)
		}()
	}
}

// IncBrowsers/DecBrowsers/IncRequests/DecRequests are race-free
// in-process tallies; Dec* saturate at zero.
func (m *Monitor) IncBrowsers()  { m.browsers.Add(1) }
func (m *Monitor) DecBrowsers()  { saturatingDec(&m.browsers) }
func (m *Monitor) IncRequests()  { m.requests.Add(1) }
func (m *Monitor) DecRequests()  { saturatingDec(&m.requests) }

func saturatingDec(counter *atomic.Int64) {
	for {
		cur := counter.Load()
		if cur <= 0 {
			return
		}
		if counter.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}
