package server

import "testing"

func TestLifecycle_Transitions(t *testing.T) {
	lc := newLifecycle()

	if lc.State() != StateRunning {
		t.Fatalf("initial state = %s, want running", lc.State())
	}

	if !lc.BeginDrain() {
		t.Fatal("BeginDrain() = false, want true")
	}
	if lc.State() != StateDraining {
		t.Fatalf("state after BeginDrain = %s, want draining", lc.State())
	}

	// One-way: a second drain request is a no-op.
	if lc.BeginDrain() {
		t.Error("second BeginDrain() = true, want false")
	}

	if !lc.MarkStopped() {
		t.Fatal("MarkStopped() = false, want true")
	}
	if lc.State() != StateStopped {
		t.Fatalf("state after MarkStopped = %s, want stopped", lc.State())
	}
	if lc.MarkStopped() {
		t.Error("second MarkStopped() = true, want false")
	}
}

func TestLifecycle_StoppedRequiresDraining(t *testing.T) {
	lc := newLifecycle()
	if lc.MarkStopped() {
		t.Error("MarkStopped() from running = true, want false")
	}
	if lc.State() != StateRunning {
		t.Errorf("state = %s, want running", lc.State())
	}
}

func TestLifecycle_ChannelsObserveTransitions(t *testing.T) {
	lc := newLifecycle()

	select {
	case <-lc.Draining():
		t.Fatal("Draining closed before BeginDrain")
	default:
	}

	lc.BeginDrain()
	select {
	case <-lc.Draining():
	default:
		t.Fatal("Draining not closed after BeginDrain")
	}

	select {
	case <-lc.Stopped():
		t.Fatal("Stopped closed before MarkStopped")
	default:
	}

	lc.MarkStopped()
	select {
	case <-lc.Stopped():
	default:
		t.Fatal("Stopped not closed after MarkStopped")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateRunning, "running"},
		{StateDraining, "draining"},
		{StateStopped, "stopped"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
