package socket

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// tcpSocket is the TCP realization. SO_REUSEADDR is implied by Go's
// net.ListenTCP on most platforms; nothing further is required here.
type tcpSocket struct {
	conn     *net.TCPConn
	listener *net.TCPListener
}

// ListenTCP binds addr ("host:port") and returns a listening Socket.
func ListenTCP(addr string) (Socket, error) {
	a, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "resolve tcp addr", err)
	}
	l, err := net.ListenTCP("tcp", a)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "listen tcp", err)
	}
	return &tcpSocket{listener: l}, nil
}

func (s *tcpSocket) Listen(backlog int) error {
	// net.ListenTCP already began listening at construction; backlog is
	// advisory on most platforms and cannot be changed after the fact
	// through the standard library, so this is a no-op kept to satisfy
	// the Socket contract's explicit Listen step.
	return nil
}

func (s *tcpSocket) Accept() (Socket, error) {
	if s.listener == nil {
		return nil, errs.New(errs.IOError, "accept called on non-listening socket")
	}
	c, err := s.listener.AcceptTCP()
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "accept failed", err)
	}
	return &tcpSocket{conn: c}, nil
}

func (s *tcpSocket) SetAcceptDeadline(t time.Time) error {
	if s.listener == nil {
		return errs.New(errs.IOError, "SetAcceptDeadline on non-listening socket")
	}
	return s.listener.SetDeadline(t)
}

func (s *tcpSocket) SetReadDeadline(t time.Time) error {
	if s.conn == nil {
		return errs.New(errs.IOError, "SetReadDeadline on non-connected socket")
	}
	return s.conn.SetReadDeadline(t)
}

func (s *tcpSocket) Send(b []byte) error {
	return sendAll(s.conn, b)
}

func (s *tcpSocket) Receive(buf []byte) (int, error) {
	return receiveOnce(s.conn, buf)
}

func (s *tcpSocket) Close() error {
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	} else if s.listener != nil {
		err = s.listener.Close()
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *tcpSocket) RecvChunkSize() int { return s.chunkSize() }
func (s *tcpSocket) SendChunkSize() int { return s.chunkSize() }

func (s *tcpSocket) chunkSize() int {
	// net.TCPConn does not expose SO_RCVBUF/SO_SNDBUF directly; a
	// reasonable, portable default kernel buffer size is used, minus the
	// header reservation, matching the C original's practice of querying
	// getsockopt and subtracting the same constant.
	const defaultKernelBuffer = 65536
	return defaultKernelBuffer - headerReservation
}

func (s *tcpSocket) Addr() string {
	if s.conn != nil {
		return s.conn.RemoteAddr().String()
	}
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// File duplicates the underlying connection's descriptor, letting the
// master worker pass an accepted connection to a re-exec'd child
// process (spec §4.5 fork-per-connection).
func (s *tcpSocket) File() (*os.File, error) {
	if s.conn == nil {
		return nil, errs.New(errs.IOError, "File called on non-connected socket")
	}
	return s.conn.File()
}
