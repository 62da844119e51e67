package session

import (
	"time"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// These literals are sent and received un-framed, deliberately outside
// the chunked wire grammar (spec §4.4 "Rationale for the raw handshake").
// Do not wrap them in frame.EncodeChunk.
const (
	ClientHello    = "PPTCLIENT_TESTING_CONNECTION"
	ServerOK       = "PPTSERVER_CONNECTION_OK"
	ServerAuth     = "PPTSERVER_AUTHENTICATE"
	handshakeBufSz = 256
)

// DefaultHandshakeTimeout is the spec's default of 5 one-second polls.
const DefaultHandshakeTimeout = 5 * time.Second

// ClientHandshake performs the client half of spec §4.4's handshake: a
// raw write of ClientHello, then polling for readability in one-second
// increments up to timeout, then validating the server's raw reply.
func (s *Session) ClientHandshake() error {
	if err := s.sock.Send([]byte(ClientHello)); err != nil {
		return err
	}
	s.setState(stateAwaitingHello)

	reply, err := s.pollRawReply()
	if err != nil {
		s.setState(stateClosed)
		return err
	}

	switch reply {
	case ServerOK:
		s.setState(stateConnected)
		return nil
	case ServerAuth:
		s.setState(stateClosed)
		return errs.New(errs.AuthNotSupported, "server requested TLS authentication, which this session does not support")
	default:
		s.setState(stateClosed)
		return errs.New(errs.HandshakeRejected, reply)
	}
}

// pollRawReply polls the socket for readability in 1-second slices, up
// to s.timeout, per spec §4.4 step 2.
func (s *Session) pollRawReply() (string, error) {
	rd, ok := s.sock.(interface{ SetReadDeadline(t time.Time) error })
	buf := make([]byte, handshakeBufSz)

	remaining := s.timeout
	for remaining > 0 {
		slice := time.Second
		if remaining < slice {
			slice = remaining
		}
		if ok {
			_ = rd.SetReadDeadline(time.Now().Add(slice))
		}
		n, err := s.sock.Receive(buf)
		if err == nil && n > 0 {
			if ok {
				_ = rd.SetReadDeadline(time.Time{})
			}
			return string(buf[:n]), nil
		}
		if err != nil && !isTimeoutErr(err) {
			return "", err
		}
		remaining -= slice
	}
	return "", errs.New(errs.HandshakeTimeout, "no reply within handshake timeout")
}

func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeouter); ok {
			return t.Timeout()
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

// ServerHandshake performs the server half: read the raw client token
// and reply with ServerOK (or ServerAuth when tlsAvailable is true — out
// of scope here per spec §4.4, so besd's handler always passes false and
// behaves as a non-TLS PPT server).
func (s *Session) ServerHandshake(tlsAvailable bool) error {
	buf := make([]byte, handshakeBufSz)
	n, err := s.sock.Receive(buf)
	if err != nil {
		s.setState(stateClosed)
		return err
	}
	if string(buf[:n]) != ClientHello {
		s.setState(stateClosed)
		return errs.New(errs.HandshakeRejected, "unexpected client hello")
	}

	if tlsAvailable {
		return s.sock.Send([]byte(ServerAuth))
	}
	if err := s.sock.Send([]byte(ServerOK)); err != nil {
		s.setState(stateClosed)
		return err
	}
	s.setState(stateConnected)
	return nil
}
