package main

import (
	"fmt"
	"log"
	"net"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
)

// Server wires the keyspace, connection multiplexer, and event loop
// together under the config loaded at startup, replacing the teacher's
// goroutine-per-connection GoFastServer with the single-threaded
// cooperative model this implementation requires.
type Server struct {
	config   *Config
	listener net.Listener
	keyspace *Keyspace
	mux      *Multiplexer
	loop     *EventLoop
	stats    *ServerStats
	wg       conc.WaitGroup
}

func NewServer(config *Config) (*Server, error) {
	maxMemory, err := config.ParseMemorySize()
	if err != nil {
		return nil, fmt.Errorf("invalid max_memory: %w", err)
	}

	stats := &ServerStats{}
	keyspace := NewKeyspace(maxMemory, config.SamplerConfig())
	mux := NewMultiplexer(stats)

	return &Server{
		config:   config,
		keyspace: keyspace,
		mux:      mux,
		stats:    stats,
	}, nil
}

// Start binds the listener and runs the event loop on a supervised
// goroutine via sourcegraph/conc, which recovers and re-panics instead of
// silently taking down the process the way a bare `go` statement would.
func (s *Server) Start() error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener
	log.Printf("nimbuskv-server listening on %s", address)

	s.loop = NewEventLoop(listener, s.keyspace, s.mux, *s.config)

	s.wg.Go(func() {
		if err := s.loop.Run(); err != nil {
			log.Printf("event loop exited: %v", err)
		}
	})

	return nil
}

// Stop requests the event loop to exit, closes the listener and every
// tracked connection, and waits for the supervised goroutine to return.
// Errors from each closed resource are aggregated with multierr instead of
// discarding all but the first.
func (s *Server) Stop() error {
	if s.loop != nil {
		s.loop.Stop()
	}

	var err error
	if s.listener != nil {
		err = multierr.Append(err, s.listener.Close())
	}
	if s.mux != nil {
		err = multierr.Append(err, s.mux.CloseAll())
	}

	s.wg.Wait()
	return err
}

func combineErrors(errs []error) error {
	var err error
	for _, e := range errs {
		err = multierr.Append(err, e)
	}
	return err
}
