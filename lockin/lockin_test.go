package lockin

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"r9ctl/sim"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestQueryEcho(t *testing.T) {
	srv, err := sim.Start(sim.Config{Reply: "42.1\n"})
	if err != nil {
		t.Fatalf("start simulator: %v", err)
	}
	defer srv.Close()

	c := NewClient(Config{Addr: srv.Addr(), ReadWait: time.Second})

	reply, err := c.Query(context.Background())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if reply != "42.1\n" {
		t.Fatalf("reply = %q, want %q", reply, "42.1\n")
	}
}

func TestQueryCommandBytes(t *testing.T) {
	srv, err := sim.Start(sim.Config{})
	if err != nil {
		t.Fatalf("start simulator: %v", err)
	}
	defer srv.Close()

	c := NewClient(Config{Addr: srv.Addr(), ReadWait: time.Second})
	if _, err := c.Query(context.Background()); err != nil {
		t.Fatalf("Query: %v", err)
	}

	got := srv.Received()
	if len(got) != 1 || got[0] != "X.\n" {
		t.Fatalf("received = %q, want exactly [%q]", got, "X.\n")
	}
}

func TestQuerySilentInstrument(t *testing.T) {
	srv, err := sim.Start(sim.Config{Silent: true})
	if err != nil {
		t.Fatalf("start simulator: %v", err)
	}
	defer srv.Close()

	c := NewClient(Config{Addr: srv.Addr(), ReadWait: 50 * time.Millisecond})

	reply, err := c.Query(context.Background())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if reply != "" {
		t.Fatalf("reply = %q, want empty", reply)
	}
}

func TestQuerySlowInstrumentTruncatesToNothing(t *testing.T) {
	// Reply arrives after the read window: the single read sees nothing.
	srv, err := sim.Start(sim.Config{Delay: 300 * time.Millisecond})
	if err != nil {
		t.Fatalf("start simulator: %v", err)
	}
	defer srv.Close()

	c := NewClient(Config{Addr: srv.Addr(), ReadWait: 30 * time.Millisecond})

	reply, err := c.Query(context.Background())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if reply != "" {
		t.Fatalf("reply = %q, want empty", reply)
	}
}

func TestQueryConnectionRefused(t *testing.T) {
	// Grab a port with nothing listening on it.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	c := NewClient(Config{Addr: addr, DialTimeout: time.Second})

	_, err = c.Query(context.Background())
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want *ConnectError", err)
	}
	if connErr.Addr != addr {
		t.Fatalf("ConnectError.Addr = %q, want %q", connErr.Addr, addr)
	}
}

func TestQueryClosesConnection(t *testing.T) {
	srv, err := sim.Start(sim.Config{})
	if err != nil {
		t.Fatalf("start simulator: %v", err)
	}
	defer srv.Close()

	c := NewClient(Config{Addr: srv.Addr(), ReadWait: time.Second})
	if _, err := c.Query(context.Background()); err != nil {
		t.Fatalf("Query: %v", err)
	}

	waitFor(t, "connection closure", func() bool { return srv.Closed() == 1 })
}

func TestQueryIndependentCalls(t *testing.T) {
	srv, err := sim.Start(sim.Config{})
	if err != nil {
		t.Fatalf("start simulator: %v", err)
	}
	defer srv.Close()

	c := NewClient(Config{Addr: srv.Addr(), ReadWait: time.Second})
	for i := 0; i < 3; i++ {
		if _, err := c.Query(context.Background()); err != nil {
			t.Fatalf("Query %d: %v", i, err)
		}
	}

	waitFor(t, "three closures", func() bool { return srv.Closed() == 3 })
	if got := len(srv.Received()); got != 3 {
		t.Fatalf("received %d commands, want 3", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := NewClient(Config{})
	cfg := c.Config()

	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.Command != DefaultCommand {
		t.Errorf("Command = %q, want %q", cfg.Command, DefaultCommand)
	}
	if cfg.Terminator != '\n' {
		t.Errorf("Terminator = %q, want '\\n'", cfg.Terminator)
	}
	if cfg.BufferSize != DefaultBufferSize {
		t.Errorf("BufferSize = %d, want %d", cfg.BufferSize, DefaultBufferSize)
	}
}

func TestCustomCommand(t *testing.T) {
	srv, err := sim.Start(sim.Config{Reply: "1.0\r\n", Terminator: '\r'})
	if err != nil {
		t.Fatalf("start simulator: %v", err)
	}
	defer srv.Close()

	c := NewClient(Config{
		Addr:       srv.Addr(),
		Command:    "MAG",
		Terminator: '\r',
		ReadWait:   time.Second,
	})
	if _, err := c.Query(context.Background()); err != nil {
		t.Fatalf("Query: %v", err)
	}

	got := srv.Received()
	if len(got) != 1 || got[0] != "MAG\r" {
		t.Fatalf("received = %q, want [%q]", got, "MAG\r")
	}
}
