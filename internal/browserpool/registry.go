package browserpool

import "sync"

// registry tracks every initialized Pool so EmergencyCleanupAll can
// reach them without the caller holding a reference.
var registry = struct {
	mu    sync.Mutex
	pools map[*Pool]struct{}
}{pools: make(map[*Pool]struct{})}

func register(p *Pool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.pools[p] = struct{}{}
}

func unregister(p *Pool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.pools, p)
}

// EmergencyCleanupAll shuts down every registered pool. Intended for
// a process-wide panic/signal handler that must guarantee no browser
// process survives the host process.
func EmergencyCleanupAll() {
	registry.mu.Lock()
	pools := make([]*Pool, 0, len(registry.pools))
	for p := range registry.pools {
		pools = append(pools, p)
	}
	registry.mu.Unlock()

	for _, p := range pools {
		p.Shutdown()
	}
}
