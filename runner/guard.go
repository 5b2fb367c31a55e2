package runner

import "sync"

// Guard keeps track of projects that are currently being deployed. Two runs
// of the same project would share a workspace and container names, so
// callers acquire the project before starting a run.
type Guard struct {
	mu      sync.Mutex
	running map[string]bool
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{running: make(map[string]bool)}
}

// TryAcquire marks project as running. It returns false if it already is.
func (g *Guard) TryAcquire(project string) bool {
	key := WorkspaceSegment(project)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running[key] {
		return false
	}
	g.running[key] = true
	return true
}

// Release marks project as idle again.
func (g *Guard) Release(project string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, WorkspaceSegment(project))
}

// Running reports whether project is currently being deployed.
func (g *Guard) Running(project string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running[WorkspaceSegment(project)]
}
