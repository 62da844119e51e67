package session

import (
	"io"

	"github.com/opendap-hyrax/besd/internal/errs"
	"github.com/opendap-hyrax/besd/internal/ppt/frame"
	"github.com/opendap-hyrax/besd/internal/ppt/socket"
)

// socketReader adapts socket.Socket.Receive to io.Reader so frame's
// decode helpers (which are io.Reader-shaped for testability) can be
// reused against a live socket.
type socketReader struct {
	sock socket.Socket
}

func (r socketReader) Read(p []byte) (int, error) {
	n, err := r.sock.Receive(p)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func readChunkHeader(sock socket.Socket) (int, frame.Kind, error) {
	return frame.ReadHeader(socketReader{sock})
}

// readChunkBody reads exactly length bytes using buf as scratch space
// when it's large enough, looping on short reads (spec §4.1 decoding
// contract: "Read exactly length bytes of body, looping on short reads;
// treat EOF mid-body as MalformedFrame").
func readChunkBody(sock socket.Socket, length int, buf []byte) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	out := make([]byte, length)
	read := 0
	for read < length {
		n, err := sock.Receive(buf[:min(len(buf), length-read)])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, errs.New(errs.MalformedFrame, "EOF mid chunk body")
		}
		copy(out[read:], buf[:n])
		read += n
	}
	return out, nil
}

// streamBody reads exactly length bytes, writing each receive-buffer-
// sized slice to sink as it arrives, instead of buffering the whole
// chunk in memory (spec §4.4: "streams the body to the caller-provided
// sink... in chunks no larger than the receive buffer").
func streamBody(sock socket.Socket, length int, buf []byte, sink io.Writer) error {
	read := 0
	for read < length {
		n, err := sock.Receive(buf[:min(len(buf), length-read)])
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.New(errs.MalformedFrame, "EOF mid chunk body")
		}
		if _, werr := sink.Write(buf[:n]); werr != nil {
			return errs.Wrap(errs.IOError, "sink write failed", werr)
		}
		read += n
	}
	return nil
}
