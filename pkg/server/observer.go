package server

import "time"

// TaskInfo summarizes one executed task for observers.
type TaskInfo struct {
	ConnID    string
	Seq       uint64
	Op        string
	Status    string // "ok" or "error"
	Started   time.Time
	Duration  time.Duration
	QueueWait time.Duration
}

// Observer receives server events. Implementations must be safe for
// concurrent use and must not block: callbacks run on worker and reader
// goroutines.
type Observer interface {
	// TaskDone fires after a task executed and its response was handed to the
	// owning session.
	TaskDone(info TaskInfo)

	// TaskRejected fires when a request is turned away with "server busy".
	TaskRejected()

	// ProtocolError fires when a request line fails to parse.
	ProtocolError()

	// ConnOpened fires when a connection is accepted.
	ConnOpened()

	// ConnClosed fires when a connection's session is torn down.
	ConnClosed()
}

// NopObserver discards all events. It is the default.
type NopObserver struct{}

func (NopObserver) TaskDone(TaskInfo) {}
func (NopObserver) TaskRejected()     {}
func (NopObserver) ProtocolError()    {}
func (NopObserver) ConnOpened()       {}
func (NopObserver) ConnClosed()       {}

type multiObserver []Observer

func (m multiObserver) TaskDone(info TaskInfo) {
	for _, o := range m {
		o.TaskDone(info)
	}
}

func (m multiObserver) TaskRejected() {
	for _, o := range m {
		o.TaskRejected()
	}
}

func (m multiObserver) ProtocolError() {
	for _, o := range m {
		o.ProtocolError()
	}
}

func (m multiObserver) ConnOpened() {
	for _, o := range m {
		o.ConnOpened()
	}
}

func (m multiObserver) ConnClosed() {
	for _, o := range m {
		o.ConnClosed()
	}
}

// CombineObservers fans events out to every given observer. Nil entries are
// skipped.
func CombineObservers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 0 {
		return NopObserver{}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}
