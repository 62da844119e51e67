package session

import "github.com/opendap-hyrax/besd/internal/ppt/frame"

// StreamSink is the adapter sink described in spec §4.5c / §9 as "the
// PPT stream buffer that rewrites stdout into framed chunks" — modeled
// here as a plain io.Writer the external dispatch writes to, rather than
// a global stdout redirection, per the Design Notes' explicit preference
// for an adapter over redirecting a process-wide stream.
type StreamSink struct {
	sess *Session
}

// NewStreamSink returns a sink that re-chunks every Write into one or
// more framed data chunks of the session's negotiated send-chunk-size.
// It does not itself send extensions or a terminator — callers flush the
// message with FlushTerminator once the dispatch completes.
func (s *Session) NewStreamSink() *StreamSink {
	return &StreamSink{sess: s}
}

func (w *StreamSink) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for _, chunk := range frame.EncodeDataChunks(p, w.sess.chunkSize()) {
		if err := w.sess.sock.Send(chunk); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// FlushTerminator ends the current message with a terminator chunk
// (spec §4.5d: "On dispatch success, flush the stream buffer, emit a
// terminator chunk").
func (w *StreamSink) FlushTerminator() error {
	return w.sess.sock.Send(frame.Terminator())
}
