// Package dispatch defines the seam between the PPT core and the
// request-dispatch pipeline spec.md names as an external collaborator:
// the module loader, request handlers, and data-format translators are
// out of scope for besd (spec §1 "OUT OF SCOPE"), but the worker loop
// (spec §4.5) needs something concrete to call. ExternalDispatcher is
// that something; EchoDispatcher is a trivial, non-production
// implementation and the one beslistener runs.
package dispatch

import (
	"context"
	"io"

	"github.com/opendap-hyrax/besd/internal/errs"
	"github.com/opendap-hyrax/besd/internal/ppt/frame"
)

// ExternalDispatcher handles one request (payload + extensions) from a
// PPT session and writes its response to out, the session's stream sink
// (spec §4.5c: "Redirect its stdout to a PPTStreamBuf-equivalent").
//
// A non-nil error from Dispatch must be classified by errs.CodeOf as one
// of errs.DispatchTerminateImmediate (fatal, the worker loop exits the
// session process after emitting the error) or errs.DispatchUserSyntax
// (recoverable, the session loop continues). Any other code is treated
// as DispatchUserSyntax.
type ExternalDispatcher interface {
	Dispatch(ctx context.Context, request []byte, ext frame.Extensions, out io.Writer) error
}

// EchoDispatcher writes the request back unchanged. It gives the worker
// loop (§4.5) a dispatcher that exercises the stream-sink plumbing
// without any real data-access handler; cmd/beslistener uses it for both
// the master and the re-exec'd child session.
type EchoDispatcher struct{}

func (EchoDispatcher) Dispatch(_ context.Context, request []byte, _ frame.Extensions, out io.Writer) error {
	if len(request) == 0 {
		return errs.New(errs.DispatchUserSyntax, "empty request")
	}
	_, err := out.Write(request)
	if err != nil {
		return errs.Wrap(errs.DispatchTerminateImmediate, "failed writing response", err)
	}
	return nil
}
