package main

import (
	"errors"
	"log"
	"net"
	"time"
)

// EventLoop drives the single-threaded cooperative scheduler: one
// goroutine alternates between accepting new connections, servicing one
// pending connection's request, and running expiration maintenance,
// mirroring the original's run_once dispatch (network/event_loop.rs)
// translated into Go's idiom of an explicit loop plus deadline-based
// non-blocking I/O rather than raw fcntl flags.
type EventLoop struct {
	listener     net.Listener
	keyspace     *Keyspace
	mux          *Multiplexer
	cfg          Config
	stop         chan struct{}
	lastFast     time.Time
	lastSlow     time.Time
}

func NewEventLoop(listener net.Listener, keyspace *Keyspace, mux *Multiplexer, cfg Config) *EventLoop {
	now := time.Now()
	return &EventLoop{
		listener: listener,
		keyspace: keyspace,
		mux:      mux,
		cfg:      cfg,
		stop:     make(chan struct{}),
		lastFast: now,
		lastSlow: now,
	}
}

// Stop requests the loop to exit after its current tick.
func (el *EventLoop) Stop() { close(el.stop) }

// Run executes ticks until Stop is called or the listener fails
// permanently. Each tick: accept at most one new connection (via an Accept
// bounded by a one-millisecond deadline, so the goroutine parks at most that
// long when nothing is pending), service at
// most one queued connection's request, then run whichever expiration
// cycle is due.
func (el *EventLoop) Run() error {
	for {
		select {
		case <-el.stop:
			return nil
		default:
		}

		if err := el.acceptOnce(); err != nil {
			return err
		}

		now := time.Now()
		el.mux.ProcessNext(el.keyspace, now)
		el.runDueExpiration(now)

		if el.cfg.IdleTimeout > 0 {
			if n := el.mux.SweepIdle(now, el.cfg.IdleTimeout); n > 0 {
				log.Printf("closed %d idle connections", n)
			}
		}

		time.Sleep(el.cfg.TickSleep)
	}
}

// acceptOnce tries to accept exactly one pending connection without
// blocking. net.Listener has no public non-blocking mode, so this borrows
// the same deadline trick used for reads: a TCPListener deadline one
// millisecond ahead lets Accept return a connection that is already
// pending, and otherwise return a timeout error once the deadline passes
// instead of parking the goroutine indefinitely, which is the closest Go
// equivalent to the original's set_nonblocking(true) on the listening
// socket. (A deadline of time.Now() would make every Accept time out, even
// with a connection pending.)
func (el *EventLoop) acceptOnce() error {
	tl, ok := el.listener.(*net.TCPListener)
	if ok {
		_ = tl.SetDeadline(time.Now().Add(time.Millisecond))
	}

	conn, err := el.listener.Accept()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	}

	if el.cfg.MaxConnections > 0 && el.mux.Len() >= el.cfg.MaxConnections {
		log.Printf("rejecting connection from %s: at max_connections=%d", conn.RemoteAddr(), el.cfg.MaxConnections)
		conn.Close()
		return nil
	}

	el.mux.AddConnection(conn, el.cfg.TCPKeepAlive)
	return nil
}

func (el *EventLoop) runDueExpiration(now time.Time) {
	if now.Sub(el.lastFast) >= el.cfg.FastExpiryInterval {
		el.lastFast = now
		stats := el.keyspace.ActiveExpireCycle(CycleFast, now)
		if stats.KeysExpired > 0 {
			log.Printf("fast expire cycle: checked=%d expired=%d iterations=%d", stats.KeysChecked, stats.KeysExpired, stats.TotalIterations)
		}
	}
	if now.Sub(el.lastSlow) >= el.cfg.SlowExpiryInterval {
		el.lastSlow = now
		stats := el.keyspace.ActiveExpireCycle(CycleSlow, now)
		if stats.KeysExpired > 0 {
			log.Printf("slow expire cycle: checked=%d expired=%d iterations=%d", stats.KeysChecked, stats.KeysExpired, stats.TotalIterations)
		}
	}
}
