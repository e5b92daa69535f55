package server

import "sync"

// TurnGate admits at most one active turn per key.
type TurnGate struct {
	mu     sync.Mutex
	active map[string]bool
}

func NewTurnGate() *TurnGate {
	return &TurnGate{active: make(map[string]bool)}
}

// Acquire claims key. It returns a release func and true, or nil and false
// when a turn for key is already running. Release is idempotent.
func (g *TurnGate) Acquire(key string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[key] {
		return nil, false
	}
	g.active[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, key)
			g.mu.Unlock()
		})
	}, true
}

// Active reports the number of running turns.
func (g *TurnGate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}
