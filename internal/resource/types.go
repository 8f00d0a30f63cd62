// Package resource periodically samples host memory/CPU/disk and
// in-process browser/request counts, and evaluates pressure against
// configured thresholds.
package resource

import "time"

// Sample is one tick's observation.
type Sample struct {
	MemoryUsage      float64 // fraction in [0,1]
	CPUUsage         float64 // fraction in [0,1]
	DiskUsage        float64 // fraction in [0,1]
	BrowserInstances int
	ActiveRequests   int
	Timestamp        time.Time
	Degraded         bool // set when sampling fell back to the last good sample
}

// Pressure is derived each tick from the latest sample and thresholds.
type Pressure struct {
	Memory  bool
	CPU     bool
	Disk    bool
	Overall bool
}

// Thresholds are fractions in (0,1); Warn < Critical for each resource.
// Only Warn is consulted for Pressure: a resource is under pressure
// once its latest sample exceeds that resource's warning threshold.
type Thresholds struct {
	MemoryWarn, MemoryCritical float64
	CPUWarn, CPUCritical       float64
	DiskWarn, DiskCritical     float64
}

// Evaluate is a pure function of the latest sample and thresholds.
func Evaluate(s Sample, t Thresholds) Pressure {
	p := Pressure{
		Memory: s.MemoryUsage > t.MemoryWarn,
		CPU:    s.CPUUsage > t.CPUWarn,
		Disk:   s.DiskUsage > t.DiskWarn,
	}
	p.Overall = p.Memory || p.CPU || p.Disk
	return p
}
