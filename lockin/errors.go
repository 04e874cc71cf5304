package lockin

import "fmt"

// ConnectError reports that the instrument could not be reached: the
// endpoint refused the connection, was unreachable, or the address did not
// resolve. No socket survives a ConnectError.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("lockin: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// IOError reports a write or read failure on a connection that was
// successfully established. Op is either "write" or "read".
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("lockin: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
