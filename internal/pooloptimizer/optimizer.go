// Package pooloptimizer implements the pure, side-effect-free function
// that maps current resource metrics to a target browser pool size.
package pooloptimizer

import "math"

// Params are the configuration-sourced thresholds the optimizer
// compares samples against.
type Params struct {
	Min, Max            int
	HighMemoryThreshold float64 // e.g. 0.8
	DemandDivisor       int     // k in "ceil(activeRequests / k)", e.g. 2
}

// Sample is the subset of a resource.Sample the optimizer needs. It is
// a local type (rather than importing internal/resource) to keep this
// package dependency-free and trivially pure.
type Sample struct {
	MemoryUsage      float64
	BrowserInstances int
	ActiveRequests   int
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// OptimalPoolSize computes the target pool size for the given sample,
// always clamped to [min,max].
func OptimalPoolSize(s Sample, p Params) int {
	k := p.DemandDivisor
	if k <= 0 {
		k = 2
	}
	demand := int(math.Ceil(float64(s.ActiveRequests) / float64(k)))

	target := demand
	if target < p.Min {
		target = p.Min
	}

	if s.MemoryUsage > p.HighMemoryThreshold {
		capped := int(math.Floor(float64(s.BrowserInstances) * 0.7))
		if capped < p.Min {
			capped = p.Min
		}
		if target > capped {
			target = capped
		}
	}

	return clamp(target, p.Min, p.Max)
}

// ShouldExpand reports whether the pool should grow.
func ShouldExpand(s Sample, p Params) bool {
	if s.BrowserInstances >= p.Max {
		return false
	}
	if s.MemoryUsage >= p.HighMemoryThreshold {
		return false
	}
	if s.BrowserInstances == 0 {
		return s.ActiveRequests > 0
	}
	ratio := float64(s.ActiveRequests) / float64(s.BrowserInstances)
	return ratio >= 2
}

// ShouldShrink reports whether the pool should shrink.
func ShouldShrink(s Sample, p Params) bool {
	if s.BrowserInstances <= p.Min {
		return false
	}
	if s.MemoryUsage >= 0.8 {
		return true
	}
	if s.BrowserInstances >= 3 {
		ratio := float64(s.ActiveRequests) / float64(s.BrowserInstances)
		if ratio < 0.5 {
			return true
		}
	}
	return false
}
