package socket

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// unixSocket is the Unix-domain realization. It unlinks a stale path
// before binding and unlinks the path again on Close, but only for the
// instance that owns it (the listening socket, not an accepted peer).
type unixSocket struct {
	conn     *net.UnixConn
	listener *net.UnixListener
	path     string
	ownsPath bool
}

// ListenUnix unlinks any existing socket file at path, binds, and begins
// listening.
func ListenUnix(path string) (Socket, error) {
	_ = os.Remove(path)

	a, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "resolve unix addr", err)
	}
	l, err := net.ListenUnix("unix", a)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "listen unix", err)
	}
	return &unixSocket{listener: l, path: path, ownsPath: true}, nil
}

func (s *unixSocket) Listen(backlog int) error { return nil }

func (s *unixSocket) Accept() (Socket, error) {
	if s.listener == nil {
		return nil, errs.New(errs.IOError, "accept called on non-listening socket")
	}
	c, err := s.listener.AcceptUnix()
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "accept failed", err)
	}
	return &unixSocket{conn: c}, nil
}

func (s *unixSocket) SetAcceptDeadline(t time.Time) error {
	if s.listener == nil {
		return errs.New(errs.IOError, "SetAcceptDeadline on non-listening socket")
	}
	return s.listener.SetDeadline(t)
}

func (s *unixSocket) SetReadDeadline(t time.Time) error {
	if s.conn == nil {
		return errs.New(errs.IOError, "SetReadDeadline on non-connected socket")
	}
	return s.conn.SetReadDeadline(t)
}

func (s *unixSocket) Send(b []byte) error {
	return sendAll(s.conn, b)
}

func (s *unixSocket) Receive(buf []byte) (int, error) {
	return receiveOnce(s.conn, buf)
}

func (s *unixSocket) Close() error {
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	if s.listener != nil {
		err = s.listener.Close()
	}
	if s.ownsPath && s.path != "" {
		_ = os.Remove(s.path)
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *unixSocket) RecvChunkSize() int { return unixFixedChunkSize }
func (s *unixSocket) SendChunkSize() int { return unixFixedChunkSize }

// File duplicates the underlying connection's descriptor (see
// tcpSocket.File).
func (s *unixSocket) File() (*os.File, error) {
	if s.conn == nil {
		return nil, errs.New(errs.IOError, "File called on non-connected socket")
	}
	return s.conn.File()
}

func (s *unixSocket) Addr() string {
	if s.conn != nil {
		return s.conn.RemoteAddr().String()
	}
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.path
}
