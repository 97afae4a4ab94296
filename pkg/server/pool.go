package server

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/lineservio/lineserv/pkg/proto"
)

// sleepFn is swapped out in tests to fault-inject the SLEEP path.
var sleepFn = time.Sleep

func (s *Server) startWorkers() {
	s.startWorkersOnce.Do(func() {
		for i := 0; i < s.cfg.Workers; i++ {
			s.workerWg.Add(1)
			go s.workerLoop(i)
		}
	})
}

// workerLoop pulls tasks until the queue reports closed with nothing left to
// drain. Workers block only on the dequeue and on the operation itself; they
// never take another worker's resources, so there is no cross-worker deadlock.
func (s *Server) workerLoop(id int) {
	defer s.workerWg.Done()

	for {
		item, err := s.tasks.Dequeue()
		if err != nil {
			s.log.Debugf("worker %d: queue closed, exiting", id)
			return
		}
		t := item.(*task)

		waited := time.Since(t.enqueuedAt)
		started := time.Now()
		resp := s.execute(t)
		duration := time.Since(started)

		t.conn.deliver(resp)

		atomic.AddInt64(&s.processed, 1)
		atomic.AddInt64(&s.latencySum, int64(time.Since(t.enqueuedAt)))

		status := "ok"
		if !resp.OK {
			status = "error"
		}
		s.observer.TaskDone(TaskInfo{
			ConnID:    t.conn.id,
			Seq:       t.seq,
			Op:        string(t.req.Op),
			Status:    status,
			Started:   started,
			Duration:  duration,
			QueueWait: waited,
		})
	}
}

// execute runs one task. Execution never raises to the loop: panics are
// isolated and converted to an internal-error response for that one task.
func (s *Server) execute(t *task) (resp proto.Response) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&s.internalErrors, 1)
			s.log.Errorf("panic executing task (isolated): conn=%s seq=%d: %v", t.conn.id, t.seq, r)
			resp = proto.Err(t.seq, "internal error")
		}
	}()

	switch t.req.Op {
	case proto.OpSleep:
		ms, err := strconv.Atoi(t.req.Arg)
		if err != nil || ms < 0 {
			return proto.Err(t.seq, "invalid SLEEP argument")
		}
		d := time.Duration(ms) * time.Millisecond
		if s.cfg.MaxSleep > 0 && d > s.cfg.MaxSleep {
			return proto.Err(t.seq, "invalid SLEEP argument")
		}
		sleepFn(d)
		return proto.OK(t.seq, t.req.Arg)

	case proto.OpEcho:
		return proto.OK(t.seq, t.req.Arg)

	default:
		// Parse admits only the ops above; anything else is a bug upstream.
		atomic.AddInt64(&s.internalErrors, 1)
		return proto.Err(t.seq, "internal error")
	}
}
