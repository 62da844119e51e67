// Package listener implements the multi-socket listener of spec §4.3: a
// set of listening sockets, accepted as one logical source via
// AcceptAny, with a 120-second timeout that simply re-enters the wait
// loop and no starvation guarantee across listeners.
//
// The original is built on select(2)/poll(2) over raw file descriptors.
// Go's net package does not expose a portable select surface over
// arbitrary listeners, so this is implemented as a deadline-based poll
// loop: each listener gets a short slice of the 120-second window to
// accept before control moves to the next one, in insertion order, so
// that "first in insertion order wins" holds whenever multiple listeners
// are simultaneously ready within one pass.
package listener

import (
	"net"
	"time"

	"github.com/opendap-hyrax/besd/internal/errs"
	"github.com/opendap-hyrax/besd/internal/ppt/socket"
)

// SelectTimeout is the spec-mandated 120-second timeout after which the
// accept loop simply re-enters the wait.
const SelectTimeout = 120 * time.Second

// pollSlice is how long each listener gets to accept before the loop
// moves on to the next one; small enough that insertion-order priority
// is meaningful, large enough not to busy-loop.
const pollSlice = 100 * time.Millisecond

// Set is an immutable-once-accepting collection of listening sockets
// sharing a common handler, per spec §3 "Listener set" invariant.
type Set struct {
	sockets []socket.Socket
	started bool
}

// New builds a Set from already-listening sockets, in the order they
// should be polled.
func New(sockets ...socket.Socket) *Set {
	return &Set{sockets: sockets}
}

// AcceptAny blocks until any member listener accepts a connection,
// cycling through the set in insertion order and re-entering the wait on
// the 120-second timeout. It returns the accepted Socket and the index
// of the listener that produced it.
//
// done, if non-nil, is checked between poll slices so callers can stop
// AcceptAny on process shutdown without an OS-level close.
func (s *Set) AcceptAny(done <-chan struct{}) (socket.Socket, int, error) {
	s.started = true
	if len(s.sockets) == 0 {
		return nil, -1, errs.New(errs.IOError, "accept on empty listener set")
	}

	deadlineWindow := time.Now().Add(SelectTimeout)
	for {
		for i, l := range s.sockets {
			select {
			case <-done:
				return nil, -1, errs.New(errs.IOError, "listener set shut down")
			default:
			}

			d, ok := l.(socket.Deadliner)
			if !ok {
				// Socket can't be deadline-polled; fall back to a
				// blocking accept, which only makes sense for a
				// single-member set.
				peer, err := l.Accept()
				if err == nil {
					return peer, i, nil
				}
				continue
			}

			slice := pollSlice
			if rem := time.Until(deadlineWindow); rem < slice {
				slice = rem
			}
			if slice <= 0 {
				continue
			}
			_ = d.SetAcceptDeadline(time.Now().Add(slice))

			peer, err := l.Accept()
			if err == nil {
				return peer, i, nil
			}
			if !isTimeout(err) {
				return nil, -1, errs.Wrap(errs.IOError, "accept failed", err)
			}
		}

		if time.Now().After(deadlineWindow) {
			deadlineWindow = time.Now().Add(SelectTimeout)
		}
	}
}

// Close closes every member socket, collecting the first error but
// attempting all of them (spec: the set is released as a unit at
// process shutdown).
func (s *Set) Close() error {
	var first error
	for _, l := range s.sockets {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func isTimeout(err error) bool {
	var nerr net.Error
	for e := err; e != nil; {
		if ne, ok := e.(net.Error); ok {
			nerr = ne
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return nerr != nil && nerr.Timeout()
}
