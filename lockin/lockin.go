// Package lockin implements a one-shot query client for a lock-in amplifier
// reachable over plain TCP. The instrument speaks newline-terminated ASCII:
// the client writes a command, takes whatever bytes the instrument has sent
// back by the time the read window closes, and hangs up.
package lockin

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Defaults for the lock-in amplifier attached to the R9 controller. The
// address is link-local, the instrument is expected on the same segment or
// at the other end of a direct cable.
const (
	DefaultAddr    = "169.254.11.17:50000"
	DefaultCommand = "X."

	DefaultTerminator = '\n'
	DefaultBufferSize = 1024

	DefaultDialTimeout = 5 * time.Second
	DefaultReadWait    = 100 * time.Millisecond
)

// Config holds the parameters of a query exchange. The zero value is usable,
// every field falls back to the package defaults above.
type Config struct {
	// Addr is the instrument's host:port.
	Addr string

	// Command is the query written to the instrument, without terminator.
	Command string

	// Terminator is appended to Command on the wire.
	Terminator byte

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// ReadWait bounds the single read performed after the command is sent.
	// When it expires before the instrument has produced any bytes the
	// query returns an empty reply rather than an error.
	ReadWait time.Duration

	// BufferSize caps how many reply bytes a single read can return.
	BufferSize int
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        DefaultAddr,
		Command:     DefaultCommand,
		Terminator:  DefaultTerminator,
		DialTimeout: DefaultDialTimeout,
		ReadWait:    DefaultReadWait,
		BufferSize:  DefaultBufferSize,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.Command == "" {
		cfg.Command = def.Command
	}
	if cfg.Terminator == 0 {
		cfg.Terminator = def.Terminator
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.ReadWait == 0 {
		cfg.ReadWait = def.ReadWait
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}
	return cfg
}

// Client performs single request/response exchanges with the instrument.
// Each Query dials a fresh connection and closes it before returning, so a
// Client holds no connection state and is safe for concurrent use.
type Client struct {
	cfg Config
}

// NewClient returns a Client for the given config. Zero fields take the
// package defaults.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration of the client.
func (c *Client) Config() Config {
	return c.cfg
}

// Query sends the configured command to the instrument and returns whatever
// reply bytes arrive within the read window, as a string with one character
// per raw byte. No reply validation or parsing is performed.
//
// Exactly one read is issued after the write: a reply split across multiple
// packets is truncated to its first segment, and an instrument that stays
// silent past ReadWait yields an empty string with a nil error.
//
// Connection failures are reported as *ConnectError, write and read
// failures on an established connection as *IOError. The connection is
// closed before Query returns in every case once the dial has succeeded.
func (c *Client) Query(ctx context.Context) (string, error) {
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return "", &ConnectError{Addr: c.cfg.Addr, Err: err}
	}
	defer conn.Close()

	cmd := make([]byte, 0, len(c.cfg.Command)+1)
	cmd = append(cmd, c.cfg.Command...)
	cmd = append(cmd, c.cfg.Terminator)

	if _, err := conn.Write(cmd); err != nil {
		return "", &IOError{Op: "write", Err: errors.Wrap(err, "send command")}
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadWait)); err != nil {
		return "", &IOError{Op: "read", Err: errors.Wrap(err, "set read deadline")}
	}

	buf := make([]byte, c.cfg.BufferSize)
	n, err := conn.Read(buf)
	if n == 0 && err != nil {
		// A closed or silent instrument produces an empty reply, not an
		// error: there is no guaranteed minimum response size.
		if err == io.EOF || isTimeout(err) {
			return "", nil
		}
		return "", &IOError{Op: "read", Err: errors.Wrap(err, "read reply")}
	}

	return string(buf[:n]), nil
}

// Query performs a one-shot exchange using the package defaults.
func Query(ctx context.Context) (string, error) {
	return NewClient(DefaultConfig()).Query(ctx)
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
