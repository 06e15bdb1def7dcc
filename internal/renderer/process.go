package renderer

import (
	"os/exec"
	"sync"

	"paper-reader/internal/logging"
)

// processTracker remembers running rasterizer subprocesses.
type processTracker struct {
	mu        sync.Mutex
	next      uint64
	processes map[uint64]trackedProcess
}

type trackedProcess struct {
	label string
	cmd   *exec.Cmd
}

func newProcessTracker() *processTracker {
	return &processTracker{processes: make(map[uint64]trackedProcess)}
}

// track registers cmd and returns the function that forgets it.
func (p *processTracker) track(label string, cmd *exec.Cmd) (untrack func()) {
	p.mu.Lock()
	p.next++
	key := p.next
	p.processes[key] = trackedProcess{label: label, cmd: cmd}
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.processes, key)
		p.mu.Unlock()
	}
}

func (p *processTracker) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processes)
}

// killAll kills every tracked process that has started.
func (p *processTracker) killAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, proc := range p.processes {
		if proc.cmd.Process != nil {
			logging.Info("Killing rasterizer process: %s", proc.label)
			if err := proc.cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill rasterizer process %s: %v", proc.label, err)
			}
		}
	}
}
