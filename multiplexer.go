package main

import (
	"bytes"
	"io"
	"log"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Connection wraps one accepted client socket together with the
// bookkeeping the multiplexer needs to carry across event-loop ticks.
type Connection struct {
	conn  net.Conn
	state connectionState
}

// connQueue is a FIFO of tracked connections. process_next_request pops
// from the front and, if the connection is still open, pushes it back at
// the end — true round-robin, fixing the teacher/original's pop-tail /
// push-tail discipline, which biases toward the most recently added
// connection (spec.md §4.5).
type connQueue struct {
	items []*Connection
}

func (q *connQueue) push(c *Connection) { q.items = append(q.items, c) }

func (q *connQueue) pop() (*Connection, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	c := q.items[0]
	q.items = q.items[1:]
	return c, true
}

func (q *connQueue) len() int { return len(q.items) }

// Multiplexer owns the set of accepted, non-blocking connections and
// services exactly one of them per call to ProcessNext, interleaving
// request handling with expiration maintenance the way the event loop
// drives it (spec.md §4.5/§4.6).
type Multiplexer struct {
	queue   connQueue
	bufPool *BytePool
	stats   *ServerStats
}

func NewMultiplexer(stats *ServerStats) *Multiplexer {
	return &Multiplexer{bufPool: NewBytePool(), stats: stats}
}

func (m *Multiplexer) Len() int { return m.queue.len() }

// AddConnection registers an accepted socket, tuning it for the
// cooperative non-blocking read/write pattern the rest of this type uses:
// TCP_NODELAY and keepalive via golang.org/x/sys/unix, since the teacher's
// TCPKeepAlive config flag was otherwise carried but never wired to an
// actual socket option (see DESIGN.md).
func (m *Multiplexer) AddConnection(conn net.Conn, tcpKeepAlive bool) {
	tuneConn(conn, tcpKeepAlive)
	c := &Connection{
		conn: conn,
		state: connectionState{
			id:           uuid.NewString(),
			lastActivity: time.Now(),
		},
	}
	m.queue.push(c)
	m.stats.Connections.Inc()
}

func tuneConn(conn net.Conn, keepAlive bool) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		if keepAlive {
			_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
		}
	})
}

// ProcessNext services at most one pending connection: it reads whatever
// bytes are currently available (non-blocking), tries to parse a frame out
// of the accumulated buffer, and if a full frame is present, routes,
// executes, and writes the response synchronously before returning the
// connection to the set.
func (m *Multiplexer) ProcessNext(ks *Keyspace, now time.Time) {
	c, ok := m.queue.pop()
	if !ok {
		return
	}

	before := len(c.state.readBuf)
	closed, err := m.fillBuffer(c)
	if err != nil {
		log.Printf("connection %s read error: %v", c.state.id, err)
		c.conn.Close()
		return
	}
	if closed {
		c.conn.Close()
		return
	}

	if len(c.state.readBuf) > before {
		c.state.lastActivity = now
	}

	if len(c.state.readBuf) > 0 {
		frame, n, perr := ParseFrame(c.state.readBuf)
		switch {
		case perr == ErrIncompleteFrame:
			// leave the accumulator intact; try again once more bytes arrive

		case perr != nil:
			m.write(c, EncodeError(perr))
			c.conn.Close()
			return

		default:
			c.state.readBuf = c.state.readBuf[n:]
			resp := m.dispatch(ks, frame, now)
			if !m.write(c, EncodeFrame(resp)) {
				c.conn.Close()
				return
			}
		}
	}

	m.queue.push(c)
}

func (m *Multiplexer) dispatch(ks *Keyspace, frame Frame, now time.Time) Frame {
	cmd, err := RouteFrame(frame)
	if err != nil {
		return ErrorFrame(err.Error())
	}
	if cmd.Name == CmdGet {
		m.stats.GetOps.Inc()
	}
	if cmd.Name == CmdSet {
		m.stats.SetOps.Inc()
	}
	if cmd.Name == CmdDel {
		m.stats.DelOps.Inc()
	}
	m.stats.TotalOps.Inc()
	return Execute(ks, cmd, now)
}

// fillBuffer reads whatever is immediately available on c's socket into
// its accumulator. It returns closed=true on a clean EOF and a non-nil
// error only for a genuine I/O failure; a read that would block is not an
// error, it simply means there was nothing new to add this tick. The read
// deadline is set one millisecond ahead: a deadline of time.Now() would make
// every Read time out before returning bytes that are already available.
func (m *Multiplexer) fillBuffer(c *Connection) (closed bool, err error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	tmp := m.bufPool.Get(4096)
	defer m.bufPool.Put(tmp)

	for {
		n, rerr := c.conn.Read(tmp)
		if n > 0 {
			c.state.readBuf = append(c.state.readBuf, tmp[:n]...)
			m.stats.BytesRead.Add(uint64(n))
			if bytes.IndexByte(tmp[:n], '\n') >= 0 {
				return false, nil
			}
			continue
		}
		if rerr != nil {
			if rerr == io.EOF {
				return true, nil
			}
			if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				return false, nil
			}
			return false, rerr
		}
		return false, nil
	}
}

func (m *Multiplexer) write(c *Connection, payload []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.conn.Write(payload); err != nil {
		log.Printf("connection %s write error: %v", c.state.id, err)
		return false
	}
	m.stats.BytesWritten.Add(uint64(len(payload)))
	return true
}

// SweepIdle closes and drops every tracked connection whose last activity
// is older than idleTimeout, implementing the idle-timeout REDESIGN
// resolution recorded in SPEC_FULL.md §5/§9. idleTimeout<=0 disables it.
func (m *Multiplexer) SweepIdle(now time.Time, idleTimeout time.Duration) int {
	if idleTimeout <= 0 {
		return 0
	}
	kept := m.queue.items[:0]
	closedCount := 0
	for _, c := range m.queue.items {
		if now.Sub(c.state.lastActivity) > idleTimeout {
			c.conn.Close()
			closedCount++
			continue
		}
		kept = append(kept, c)
	}
	m.queue.items = kept
	return closedCount
}

// CloseAll closes every tracked connection, used during server shutdown.
func (m *Multiplexer) CloseAll() error {
	var errs []error
	for _, c := range m.queue.items {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.queue.items = nil
	return combineErrors(errs)
}
