package main

import (
	"net"
	"testing"
	"time"
)

// dialedPair returns a connected client/server TCP conn pair backed by a
// real loopback listener, since the multiplexer relies on *net.TCPConn for
// its deadline-based non-blocking read trick and socket tuning.
func dialedPair(t *testing.T) (client net.Conn, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			errCh <- err
			return
		}
		acceptCh <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	select {
	case server = <-acceptCh:
	case err := <-errCh:
		t.Fatalf("accept: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for accept")
	}
	return client, server
}

func readAll(t *testing.T, conn net.Conn, timeout time.Duration) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return buf[:n]
}

func TestMultiplexer_GetNoSuchKey(t *testing.T) {
	client, server := dialedPair(t)
	defer client.Close()

	ks := newTestKeyspace(0)
	mux := NewMultiplexer(&ServerStats{})
	mux.AddConnection(server, false)

	if _, err := client.Write([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// give the accumulator's newline-detection loop a moment to observe the bytes
	time.Sleep(20 * time.Millisecond)
	mux.ProcessNext(ks, time.Now())

	got := readAll(t, client, time.Second)
	want := "-ERR no such key\r\n"
	if string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMultiplexer_SetThenGet(t *testing.T) {
	client, server := dialedPair(t)
	defer client.Close()

	ks := newTestKeyspace(0)
	mux := NewMultiplexer(&ServerStats{})
	mux.AddConnection(server, false)

	client.Write([]byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"))
	time.Sleep(20 * time.Millisecond)
	mux.ProcessNext(ks, time.Now())
	got := readAll(t, client, time.Second)
	if string(got) != "+OK\r\n" {
		t.Fatalf("SET response = %q, want +OK\\r\\n", got)
	}

	client.Write([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))
	time.Sleep(20 * time.Millisecond)
	mux.ProcessNext(ks, time.Now())
	got = readAll(t, client, time.Second)
	if string(got) != "$3\r\nbar\r\n" {
		t.Fatalf("GET response = %q, want $3\\r\\nbar\\r\\n", got)
	}
}

func TestMultiplexer_PartialFrameAcrossTicks(t *testing.T) {
	client, server := dialedPair(t)
	defer client.Close()

	ks := newTestKeyspace(0)
	mux := NewMultiplexer(&ServerStats{})
	mux.AddConnection(server, false)

	// write the frame in two pieces, separated by a ProcessNext tick, to
	// exercise the persistent per-connection read accumulator
	client.Write([]byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n"))
	time.Sleep(20 * time.Millisecond)
	mux.ProcessNext(ks, time.Now())

	client.Write([]byte("$3\r\nbar\r\n"))
	time.Sleep(20 * time.Millisecond)
	mux.ProcessNext(ks, time.Now())

	got := readAll(t, client, time.Second)
	if string(got) != "+OK\r\n" {
		t.Fatalf("response after reassembled frame = %q, want +OK\\r\\n", got)
	}
}

func TestMultiplexer_RequeuesConnectionAfterSuccess(t *testing.T) {
	client, server := dialedPair(t)
	defer client.Close()

	ks := newTestKeyspace(0)
	mux := NewMultiplexer(&ServerStats{})
	mux.AddConnection(server, false)

	client.Write([]byte("*1\r\n$7\r\nFLUSHDB\r\n"))
	time.Sleep(20 * time.Millisecond)
	mux.ProcessNext(ks, time.Now())
	readAll(t, client, time.Second)

	if mux.Len() != 1 {
		t.Fatalf("connection should be requeued after a handled request, Len()=%d", mux.Len())
	}
}

func TestMultiplexer_SweepIdleClosesStaleConnections(t *testing.T) {
	client, server := dialedPair(t)
	defer client.Close()

	mux := NewMultiplexer(&ServerStats{})
	mux.AddConnection(server, false)

	closed := mux.SweepIdle(time.Now().Add(time.Hour), time.Minute)
	if closed != 1 {
		t.Fatalf("SweepIdle closed %d connections, want 1", closed)
	}
	if mux.Len() != 0 {
		t.Fatalf("expected idle connection removed, Len()=%d", mux.Len())
	}
}
