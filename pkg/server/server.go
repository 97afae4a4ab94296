// Package server implements the concurrent line-oriented request server: an
// acceptor spawning one session per connection, a fixed worker pool draining a
// bounded task queue, and per-connection response ordering.
package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lineservio/lineserv/pkg/config"
	"github.com/lineservio/lineserv/pkg/core"
	"github.com/lineservio/lineserv/pkg/queue"
)

// Server ties the acceptor, the bounded task queue, the worker pool and the
// lifecycle coordinator together.
type Server struct {
	cfg      *config.Config
	log      core.Logger
	observer Observer

	tasks *queue.Queue
	lc    *lifecycle

	mu       sync.RWMutex
	listener net.Listener
	conns    map[string]*Conn

	startWorkersOnce sync.Once
	workerWg         sync.WaitGroup
	connWg           sync.WaitGroup

	startTime time.Time

	// Counters (atomic).
	totalAccepted  int64
	processed      int64
	rejected       int64
	protocolErrors int64
	internalErrors int64
	latencySum     int64 // nanoseconds, enqueue to delivery
}

// New creates a server from cfg. A nil cfg means config.Default(). Invalid
// configuration is a programmer error and panics (fail-fast, before any
// socket is opened).
func New(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid server config: %v", err))
	}

	return &Server{
		cfg:      cfg,
		log:      core.NewDefaultLogger(),
		observer: NopObserver{},
		tasks:    queue.New(cfg.QueueCapacity),
		lc:       newLifecycle(),
		conns:    make(map[string]*Conn),
	}
}

// SetLogger replaces the default logger. Fail-fast on nil.
func (s *Server) SetLogger(l core.Logger) {
	if l == nil {
		panic("server logger cannot be nil")
	}
	s.log = l
}

// SetObserver installs an event observer. Call before Start. Fail-fast on nil;
// use NopObserver to disable.
func (s *Server) SetObserver(o Observer) {
	if o == nil {
		panic("server observer cannot be nil")
	}
	s.observer = o
}

// State returns the lifecycle state.
func (s *Server) State() State { return s.lc.State() }

// ListeningAddr returns the actual listening address (useful when Addr is
// ":0"). Empty when not listening.
func (s *Server) ListeningAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listen address and runs the accept loop. It blocks until
// Stop is called or the listener fails. A bind failure is returned to the
// caller; the process treats it as fatal.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.startTime = time.Now()
	s.mu.Unlock()

	s.startWorkers()
	if s.cfg.StatsInterval > 0 {
		go s.statsLoop()
	}

	s.log.Infof("listening on %s (workers=%d queue=%d timeout=%s inflight=%d)",
		ln.Addr(), s.cfg.Workers, s.cfg.QueueCapacity, s.cfg.EnqueueTimeout, s.cfg.MaxInFlight)

	for {
		conn, err := ln.Accept()
		if err != nil {
			// A closed listener during draining is a clean shutdown.
			if s.lc.State() != StateRunning || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		atomic.AddInt64(&s.totalAccepted, 1)
		c := newConn(s, conn)
		s.trackConn(c)
		s.observer.ConnOpened()

		s.connWg.Add(1)
		go c.run()
	}
}

// Stop drains and stops the server: the acceptor stops accepting, the queue
// closes (already-queued tasks are still drained, new enqueues are rejected),
// workers get the shutdown grace period to finish and flush, then remaining
// sockets are force-closed. Responses stranded by the grace cutoff are
// dropped and logged. Blocks until the stopped state is reached. Idempotent.
func (s *Server) Stop() error {
	if !s.lc.BeginDrain() {
		<-s.lc.Stopped()
		return nil
	}
	s.log.Infof("draining: closing listener and task queue")

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	s.tasks.Close()

	workersDone := make(chan struct{})
	go func() {
		s.workerWg.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
	case <-time.After(s.cfg.ShutdownGrace):
		s.log.Warnf("shutdown grace %s elapsed; unflushed responses will be dropped", s.cfg.ShutdownGrace)
	}

	for _, c := range s.snapshotConns() {
		c.teardown()
	}
	s.connWg.Wait()

	// Stopped is only reached once every worker exited. Workers past the
	// grace cutoff deliver into dead sessions (dropped) and are bounded by
	// the SLEEP cap, so this wait cannot hang on client behavior.
	<-workersDone

	s.lc.MarkStopped()
	s.log.Infof("stopped (processed=%d rejected=%d)",
		atomic.LoadInt64(&s.processed), atomic.LoadInt64(&s.rejected))
	return nil
}

func (s *Server) trackConn(c *Conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
}

func (s *Server) removeConn(c *Conn) {
	s.mu.Lock()
	_, known := s.conns[c.id]
	delete(s.conns, c.id)
	s.mu.Unlock()
	if known {
		s.observer.ConnClosed()
	}
}

func (s *Server) snapshotConns() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) noteRejected() {
	atomic.AddInt64(&s.rejected, 1)
	s.observer.TaskRejected()
}

func (s *Server) noteProtocolError() {
	atomic.AddInt64(&s.protocolErrors, 1)
	s.observer.ProtocolError()
}

// ServerMetrics is a point-in-time snapshot for the stats line, the admin
// readiness check and the Prometheus gauge updater.
type ServerMetrics struct {
	State             string
	QueuedTasks       int
	QueueCapacity     int
	Workers           int
	QueueUtilization  float64 // percent
	TotalAccepted     int64
	ActiveConnections int64
	ProcessedTasks    int64
	RejectedTasks     int64
	ProtocolErrors    int64
	InternalErrors    int64
	AvgLatencyMillis  float64 // enqueue to delivery, over all processed tasks
}

// Metrics returns current server metrics.
func (s *Server) Metrics() ServerMetrics {
	s.mu.RLock()
	active := int64(len(s.conns))
	s.mu.RUnlock()

	processed := atomic.LoadInt64(&s.processed)
	avgMs := 0.0
	if processed > 0 {
		avgMs = float64(atomic.LoadInt64(&s.latencySum)) / float64(processed) / float64(time.Millisecond)
	}

	qlen := s.tasks.Len()
	qcap := s.tasks.Cap()
	util := float64(qlen) / float64(qcap) * 100

	return ServerMetrics{
		State:             s.lc.State().String(),
		QueuedTasks:       qlen,
		QueueCapacity:     qcap,
		Workers:           s.cfg.Workers,
		QueueUtilization:  util,
		TotalAccepted:     atomic.LoadInt64(&s.totalAccepted),
		ActiveConnections: active,
		ProcessedTasks:    processed,
		RejectedTasks:     atomic.LoadInt64(&s.rejected),
		ProtocolErrors:    atomic.LoadInt64(&s.protocolErrors),
		InternalErrors:    atomic.LoadInt64(&s.internalErrors),
		AvgLatencyMillis:  avgMs,
	}
}

// statsLoop periodically logs throughput figures until draining begins.
func (s *Server) statsLoop() {
	ticker := time.NewTicker(s.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m := s.Metrics()
			elapsed := time.Since(s.startTime).Seconds()
			rps := 0.0
			if elapsed > 0 {
				rps = float64(m.ProcessedTasks) / elapsed
			}
			s.log.Infof("[stats] processed=%d avg_latency_ms=%.2f qlen=%d rps=%.2f conns=%d rejected=%d",
				m.ProcessedTasks, m.AvgLatencyMillis, m.QueuedTasks, rps,
				m.ActiveConnections, m.RejectedTasks)
		case <-s.lc.Draining():
			return
		}
	}
}
