// Package socket is the unified TCP/Unix stream-socket abstraction of
// spec §4.2: one capability set, two concrete realizations, blocking
// send/recv, and chunk-size hints the PPT session layer uses to bound
// how large a single chunk it writes.
//
// The retry-on-EINTR/EAGAIN contract in spec §4.2 is the Go runtime's
// job here: net.Conn read/write already loop internally on the
// networking poller, so this layer does not re-implement it — it only
// has to translate net package errors into the errs taxonomy and honor
// the reservation/unlink/idempotent-close invariants the spec calls out
// by name.
package socket

import (
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// headerReservation is the 15-byte reservation the chunk-header and a
// small safety margin cost, subtracted from the kernel send/recv buffer
// size to get a chunk-size hint (spec §4.2).
const headerReservation = 15

// unixFixedChunkSize is the fixed chunk-size hint Unix-domain sockets
// report, independent of any kernel buffer query (spec §4.2).
const unixFixedChunkSize = 65535

// Deadliner is implemented by listening sockets so the multi-socket
// listener (spec §4.3) can poll each one with a bounded deadline instead
// of blocking forever — Go's standard library has no portable select(2)
// surface over arbitrary net.Listener values, so a deadline-based poll
// loop is the idiomatic stand-in.
type Deadliner interface {
	SetAcceptDeadline(t time.Time) error
}

// ReadDeadliner is implemented by connected sockets so the session
// handshake (spec §4.4) can poll for readability in 1-second increments
// without a dedicated select(2) call.
type ReadDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// FileSocket is implemented by connected sockets that can hand out a
// duplicated *os.File for their underlying descriptor, which is how the
// master worker passes an accepted connection to a re-exec'd child
// process (spec §4.5 fork-per-connection, adapted per Master's doc
// comment in internal/worker).
type FileSocket interface {
	File() (*os.File, error)
}

// Socket is the capability set both realizations implement.
type Socket interface {
	// Listen binds and begins listening with the given backlog hint.
	Listen(backlog int) error
	// Accept blocks until a peer connects, returning a new connected
	// Socket that owns its own descriptor.
	Accept() (Socket, error)
	// Send writes every byte of b or returns an Io error.
	Send(b []byte) error
	// Receive blocks for at least one byte; returns (0, nil) only on a
	// clean EOF.
	Receive(buf []byte) (int, error)
	// Close is idempotent; for Unix sockets it unlinks the path if this
	// instance owns it (i.e. it was the listening socket, not an
	// accepted connection).
	Close() error

	RecvChunkSize() int
	SendChunkSize() int

	// Addr is the local/remote address pair, for diagnostics only.
	Addr() string
}

// Dial connects to target over the given network ("tcp" or "unix"),
// returning a connected Socket.
func Dial(network, target string) (Socket, error) {
	conn, err := net.Dial(network, target)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "connect failed", err)
	}
	return wrap(network, conn, false)
}

// FromFile reconstructs a connected Socket from an inherited descriptor
// (spec §4.5 fork-per-connection: the child session process receives
// its connection this way instead of via Accept).
func FromFile(f *os.File) (Socket, error) {
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "reconstruct socket from inherited fd", err)
	}
	switch conn.(type) {
	case *net.UnixConn:
		return wrap("unix", conn, false)
	default:
		return wrap("tcp", conn, false)
	}
}

func wrap(network string, conn net.Conn, owner bool) (Socket, error) {
	switch network {
	case "unix", "unixgram":
		return &unixSocket{conn: conn.(*net.UnixConn), ownsPath: owner}, nil
	default:
		return &tcpSocket{conn: conn.(*net.TCPConn)}, nil
	}
}

func sendAll(conn net.Conn, b []byte) error {
	n, err := conn.Write(b)
	if err != nil {
		return errs.Wrap(errs.IOError, "short write", err)
	}
	if n != len(b) {
		return errs.New(errs.IOError, "short write after retries")
	}
	return nil
}

func receiveOnce(conn net.Conn, buf []byte) (int, error) {
	n, err := conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		return 0, errs.Wrap(errs.IOError, "receive failed", err)
	}
	return n, nil
}
