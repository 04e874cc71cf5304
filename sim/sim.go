// Package sim provides a small TCP stand-in for the lock-in amplifier. It
// accepts connections, reads terminator-delimited commands, and answers each
// with a canned reply. Tests use it to observe exactly what the client puts
// on the wire; the CLI can serve one in-process for offline use.
package sim

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultReply mimics a lock-in returning an X-channel magnitude.
const DefaultReply = "42.1\n"

// Config controls simulator behavior.
type Config struct {
	// Addr to listen on, e.g. "127.0.0.1:0".
	Addr string

	// Reply sent verbatim for every received command.
	Reply string

	// Delay to wait after a command before replying. A delay longer than
	// the client's read window makes the instrument appear silent.
	Delay time.Duration

	// Silent suppresses replies entirely.
	Silent bool

	// Terminator delimits inbound commands.
	Terminator byte

	// Log is optional; nil disables logging.
	Log *logrus.Logger
}

// Server is a running simulator instance.
type Server struct {
	cfg      Config
	listener net.Listener

	mu       sync.Mutex
	received []string
	closed   int

	wg sync.WaitGroup
}

// Start launches the simulator and begins accepting connections.
func Start(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if cfg.Reply == "" {
		cfg.Reply = DefaultReply
	}
	if cfg.Terminator == 0 {
		cfg.Terminator = '\n'
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("sim: listen %s: %w", cfg.Addr, err)
	}

	s := &Server{cfg: cfg, listener: listener}

	s.wg.Add(1)
	go s.acceptLoop()

	if cfg.Log != nil {
		cfg.Log.Infof("simulator listening on %s", listener.Addr())
	}

	return s, nil
}

// Addr returns the address the simulator is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Received returns every command read so far, terminators included.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}

// Closed returns how many client connections have been closed.
func (s *Server) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting connections and shuts the simulator down.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		s.closed++
		s.mu.Unlock()
	}()

	if s.cfg.Log != nil {
		s.cfg.Log.Debugf("connection from %s", conn.RemoteAddr())
	}

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString(s.cfg.Terminator)
		if line != "" {
			s.mu.Lock()
			s.received = append(s.received, line)
			s.mu.Unlock()
		}
		if err != nil {
			return
		}

		if s.cfg.Silent {
			continue
		}
		if s.cfg.Delay > 0 {
			time.Sleep(s.cfg.Delay)
		}
		if _, err := conn.Write([]byte(s.cfg.Reply)); err != nil {
			return
		}
	}
}
