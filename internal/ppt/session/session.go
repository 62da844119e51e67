// Package session implements the PPT session endpoint of spec §4.4: a
// connection-scoped state machine built on the framing codec
// (internal/ppt/frame) and the socket abstraction (internal/ppt/socket).
package session

import (
	"io"
	"sync"
	"time"

	"github.com/opendap-hyrax/besd/internal/errs"
	"github.com/opendap-hyrax/besd/internal/ppt/frame"
	"github.com/opendap-hyrax/besd/internal/ppt/socket"
)

type state int

const (
	stateFresh state = iota
	stateAwaitingHello
	stateConnected
	stateClosing
	stateClosed
)

// Session is bound to exactly one connected socket for its whole
// lifetime (spec §3 "Session" invariant: once Closed, the owning socket
// is released and no further I/O is attempted on it).
type Session struct {
	sock    socket.Socket
	timeout time.Duration

	mu    sync.Mutex
	st    state
	brokenPipe bool

	recvBuf []byte
}

// New wraps sock in a fresh Session. timeout is the handshake read
// timeout; zero selects DefaultHandshakeTimeout.
func New(sock socket.Socket, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	return &Session{sock: sock, timeout: timeout, st: stateFresh}
}

func (s *Session) setState(v state) {
	s.mu.Lock()
	s.st = v
	s.mu.Unlock()
}

func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.st {
	case stateFresh:
		return "Fresh"
	case stateAwaitingHello:
		return "AwaitingHello"
	case stateConnected:
		return "Connected"
	case stateClosing:
		return "Closing"
	default:
		return "Closed"
	}
}

func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st == stateConnected
}

// SetBrokenPipe records that writing would be futile (SIGPIPE handler),
// suppressing the exit token during Close (spec §4.4 "Broken-pipe flag").
func (s *Session) SetBrokenPipe(v bool) {
	s.mu.Lock()
	s.brokenPipe = v
	s.mu.Unlock()
}

func (s *Session) isBrokenPipe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brokenPipe
}

func (s *Session) chunkSize() int {
	n := s.sock.SendChunkSize()
	if n <= 0 {
		n = frame.MaxChunkBody
	}
	return n
}

// Send encodes and writes one complete message: an optional extension
// chunk, the payload split into data chunks bounded by the session's
// send-chunk-size, then a terminator (spec §4.1 encoding contract).
func (s *Session) Send(ext frame.Extensions, payload []byte) error {
	return s.sock.Send(frame.EncodeMessage(ext, payload, s.chunkSize()))
}

// SendExit sends the extension-only {"status":"exit_now"} message
// followed by a *separate* terminator chunk. Spec §9 flags this two-call
// pattern as load-bearing for wire compatibility; do not collapse it
// into a single Send call.
func (s *Session) SendExit() error {
	if s.isBrokenPipe() {
		return nil
	}
	if err := s.sock.Send(frame.EncodeExtensionChunk(frame.NewExitExtensions())); err != nil {
		return err
	}
	return s.sock.Send(frame.Terminator())
}

// Receive reads one chunk and returns it to the caller per spec §4.4:
//   - a clean EOF before any header byte synthesizes the exit_now
//     extension with done=true (orderly shutdown);
//   - an extension chunk returns the parsed extensions with done=false;
//   - a length-0 data chunk returns done=true;
//   - a length-> 0 data chunk streams its body into sink in chunks no
//     larger than the receive buffer and returns done=false.
//
// Invariant (spec §4.4): a caller that gets done=false must call
// Receive again before sending anything.
func (s *Session) Receive(sink io.Writer) (ext frame.Extensions, done bool, err error) {
	if s.recvBuf == nil {
		n := s.sock.RecvChunkSize()
		if n <= 0 {
			n = 4096
		}
		s.recvBuf = make([]byte, n)
	}

	length, kind, herr := readChunkHeader(s.sock)
	if herr != nil {
		if errs.Is(herr, errs.PeerClosed) {
			return frame.NewExitExtensions(), true, nil
		}
		return nil, false, herr
	}

	switch kind {
	case frame.KindExtensions:
		body, berr := readChunkBody(s.sock, length, s.recvBuf)
		if berr != nil {
			return nil, false, berr
		}
		ext, err = frame.ParseExtensionBody(body)
		if err != nil {
			return nil, false, err
		}
		return ext, false, nil

	case frame.KindData:
		if length == 0 {
			return nil, true, nil
		}
		if err := streamBody(s.sock, length, s.recvBuf, sink); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	default:
		return nil, false, errs.New(errs.MalformedFrame, "unrecognised chunk tag")
	}
}

// Close sends the exit signal (unless broken-pipe or already
// disconnected) then closes the socket. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.st == stateClosed {
		s.mu.Unlock()
		return nil
	}
	wasConnected := s.st == stateConnected
	s.st = stateClosing
	s.mu.Unlock()

	if wasConnected {
		_ = s.SendExit()
	}

	err := s.sock.Close()
	s.setState(stateClosed)
	return err
}
