package server

import "sync/atomic"

// State is the process-wide lifecycle state observed by the acceptor, the
// workers and the sessions.
type State int32

const (
	// StateRunning accepts connections and admits new tasks.
	StateRunning State = iota
	// StateDraining stops accepting; admitted work is allowed to finish
	// within the shutdown grace period.
	StateDraining
	// StateStopped means all workers exited and all sockets are closed.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// lifecycle holds the running -> draining -> stopped transitions. Transitions
// are one-way; each closes a channel so components can select on the change
// instead of polling a flag.
type lifecycle struct {
	state    atomic.Int32
	draining chan struct{}
	stopped  chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		draining: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (l *lifecycle) State() State {
	return State(l.state.Load())
}

// BeginDrain moves running -> draining. Returns false if the transition
// already happened.
func (l *lifecycle) BeginDrain() bool {
	if !l.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return false
	}
	close(l.draining)
	return true
}

// MarkStopped moves draining -> stopped. Returns false unless the server was
// draining.
func (l *lifecycle) MarkStopped() bool {
	if !l.state.CompareAndSwap(int32(StateDraining), int32(StateStopped)) {
		return false
	}
	close(l.stopped)
	return true
}

// Draining is closed when draining begins.
func (l *lifecycle) Draining() <-chan struct{} { return l.draining }

// Stopped is closed once the stopped state is reached.
func (l *lifecycle) Stopped() <-chan struct{} { return l.stopped }
