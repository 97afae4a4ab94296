package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lineservio/lineserv/pkg/proto"
)

// task is one parsed request waiting for a worker. It is created by a session
// on a successful parse and consumed exactly once; failures become an ERR
// response, never a retry.
type task struct {
	conn       *Conn
	seq        uint64
	req        proto.Request
	enqueuedAt time.Time
}

// Conn owns one client socket: a dedicated reader goroutine, the
// per-connection sequencing state, and the write lock that keeps concurrent
// workers from interleaving output.
type Conn struct {
	id  string
	raw net.Conn
	srv *Server

	// wmu is the sole serialization point for the socket's write side, held
	// only for the duration of a single write.
	wmu sync.Mutex

	// mu guards nextSend, pending and dead.
	mu       sync.Mutex
	nextSend uint64
	pending  map[uint64]proto.Response
	dead     bool

	// nextSeq is touched only by the reader goroutine.
	nextSeq uint64

	// inflight is a slot per unacknowledged request; the reader blocks
	// acquiring a slot once the configured cap is reached.
	inflight chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(srv *Server, raw net.Conn) *Conn {
	return &Conn{
		id:       uuid.NewString(),
		raw:      raw,
		srv:      srv,
		pending:  make(map[uint64]proto.Response),
		inflight: make(chan struct{}, srv.cfg.MaxInFlight),
		closed:   make(chan struct{}),
	}
}

// ID returns the connection's unique id.
func (c *Conn) ID() string { return c.id }

func (c *Conn) run() {
	defer c.srv.connWg.Done()
	defer c.teardown()
	c.readLoop()
}

// readLoop reads newline-terminated requests until the socket errors, the
// client closes, or the session is torn down. A partial line at EOF is
// connection termination, not a request.
func (c *Conn) readLoop() {
	reader := bufio.NewReader(c.raw)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && !isClosedConnError(err) {
				c.srv.log.Debugf("conn %s: read: %v", c.id, err)
			}
			return
		}
		line = strings.TrimSuffix(line, "\n")

		seq := c.nextSeq
		c.nextSeq++

		// Per-connection flow control, independent of the queue's global cap.
		select {
		case c.inflight <- struct{}{}:
		case <-c.closed:
			return
		}

		req, perr := proto.Parse(line)
		if perr != nil {
			c.srv.noteProtocolError()
			c.deliver(proto.Err(seq, perr.Error()))
			continue
		}

		t := &task{conn: c, seq: seq, req: req, enqueuedAt: time.Now()}
		if err := c.srv.tasks.Enqueue(t, c.srv.cfg.EnqueueTimeout); err != nil {
			// Full past the timeout, or closed while draining. Either way the
			// request never occupied a queue slot.
			c.srv.noteRejected()
			c.deliver(proto.Err(seq, "server busy"))
		}
	}
}

// deliver routes a completed response through the ordering window: written
// immediately when its sequence number is next, buffered otherwise. Buffered
// successors are flushed in order behind it. Responses for a dead connection
// are dropped, never retried.
func (c *Conn) deliver(resp proto.Response) {
	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		c.releaseSlot()
		return
	}
	if resp.Seq != c.nextSend {
		c.pending[resp.Seq] = resp
		c.mu.Unlock()
		return
	}

	cur := resp
	for {
		if err := c.write(cur); err != nil {
			c.dead = true
			c.pending = nil
			c.mu.Unlock()
			c.releaseSlot()
			c.srv.log.Debugf("conn %s: write: %v", c.id, err)
			c.teardown()
			return
		}
		c.nextSend++
		c.releaseSlot()

		next, ok := c.pending[c.nextSend]
		if !ok {
			break
		}
		delete(c.pending, c.nextSend)
		cur = next
	}
	c.mu.Unlock()
}

func (c *Conn) write(resp proto.Response) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := io.WriteString(c.raw, proto.Format(resp))
	return err
}

func (c *Conn) releaseSlot() {
	select {
	case <-c.inflight:
	default:
	}
}

// teardown closes the socket, discards buffered responses and unblocks the
// reader. Safe to call from any goroutine, any number of times.
func (c *Conn) teardown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.raw.Close()

		c.mu.Lock()
		c.dead = true
		c.pending = nil
		c.mu.Unlock()

		c.srv.removeConn(c)
	})
}

func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
