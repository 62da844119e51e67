package worker

import (
	"os"

	"github.com/opendap-hyrax/besd/internal/ppt/socket"
)

func connFile(s socket.Socket) (*os.File, bool) {
	fs, ok := s.(socket.FileSocket)
	if !ok {
		return nil, false
	}
	f, err := fs.File()
	if err != nil {
		return nil, false
	}
	return f, true
}
