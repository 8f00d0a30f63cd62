// Package browserpool manages a pool of reusable renderer instances
// behind a consumed Factory interface. The pool is
// renderer-agnostic: it never imports a concrete browser automation
// library, so any Factory implementation (see pkg/rodbrowser for the
// reference one) can back it.
package browserpool

import (
	"context"
	"time"
)

// Handle is a renderer-owned opaque reference to a live browser
// process/connection. The pool never inspects it; it only passes it
// back into the Factory.
type Handle any

// LaunchOptions is a renderer-owned opaque launch configuration. The
// pool only ever receives these from Factory.OptimalLaunchOptions/
// FallbackLaunchOptions and replays them into Factory.Create.
type LaunchOptions any

// Factory is the consumed interface a concrete renderer implements.
type Factory interface {
	Create(ctx context.Context, opts LaunchOptions) (Handle, error)
	Validate(h Handle) bool
	Close(h Handle) error
	KillProcess(h Handle) error
	GetVersion(h Handle) string
	OptimalLaunchOptions() LaunchOptions
	FallbackLaunchOptions() []LaunchOptions
}

// BrowserInstance is the value handed to callers by GetBrowser and
// returned via ReleaseBrowser.
type BrowserInstance struct {
	ID         string
	Handle     Handle
	CreatedAt  time.Time
	LastUsedAt time.Time
	Healthy    bool
}

// Metrics are the monotonically non-decreasing pool counters. Shutdown
// leaves them untouched, so in practice these only ever grow for the
// lifetime of a Pool value.
type Metrics struct {
	Created   int64
	Reused    int64
	Destroyed int64
	Errors    int64
}

// PoolStatus is the snapshot returned by Pool.Status.
type PoolStatus struct {
	Total     int
	Available int
	Busy      int
	Healthy   int
	Min       int
	Max       int
	Draining  bool
	Metrics   Metrics
}

// Params configure a Pool.
type Params struct {
	Min             int
	Max             int
	AcquireTimeout  time.Duration // default 30s
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	GracefulClose   time.Duration // default 10s
}
