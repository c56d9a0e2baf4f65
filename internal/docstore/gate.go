package docstore

import "sync"

// Gate serializes the callbacks of one listener against its release. Once
// Close returns, no callback passed to Do runs. Close waits for a callback
// already running, so it must not be called from inside one.
type Gate struct {
	mu     sync.Mutex
	closed bool
}

// Do runs fn unless the gate is closed and reports whether it ran.
func (g *Gate) Do(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	fn()
	return true
}

// Close shuts the gate.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
