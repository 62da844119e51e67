package frame

import (
	"io"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// ReadHeader reads exactly one 8-byte chunk header from r.
//
// A clean EOF before any header byte is read is surfaced as PeerClosed
// (spec §4.1: "a clean EOF occurring before any header byte is read must
// be surfaced distinctly... the master worker uses this to exit cleanly
// when its parent closes the admin pipe"). Any other short read, or a
// non-hex length, or an unrecognised tag, is MalformedFrame.
func ReadHeader(r io.Reader) (length int, kind Kind, err error) {
	var hdr [HeaderLen]byte
	n, rerr := io.ReadFull(r, hdr[:])
	if n == 0 && rerr == io.EOF {
		return 0, 0, errs.New(errs.PeerClosed, "peer closed before sending a chunk header")
	}
	if rerr != nil {
		return 0, 0, errs.Wrap(errs.MalformedFrame, "short read on chunk header", rerr)
	}

	length, err = parseHexLen(hdr[:7])
	if err != nil {
		return 0, 0, err
	}

	switch Kind(hdr[7]) {
	case KindData:
		kind = KindData
	case KindExtensions:
		kind = KindExtensions
	default:
		return 0, 0, malformed("unrecognised chunk tag byte")
	}
	return length, kind, nil
}

func parseHexLen(digits []byte) (int, error) {
	n := 0
	for _, d := range digits {
		var v int
		switch {
		case d >= '0' && d <= '9':
			v = int(d - '0')
		case d >= 'a' && d <= 'f':
			v = int(d-'a') + 10
		case d >= 'A' && d <= 'F':
			v = int(d-'A') + 10
		default:
			return 0, malformed("non-hex digit in chunk length")
		}
		n = n<<4 | v
	}
	return n, nil
}

// ReadBody reads exactly length bytes from r, looping on short reads.
// EOF before length bytes are delivered is MalformedFrame (spec §4.1).
func ReadBody(r io.Reader, length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errs.Wrap(errs.MalformedFrame, "short read on chunk body", err)
	}
	return buf, nil
}

// ParseExtensionBody parses the ";"-terminated "name[=value];" segments
// of an extension chunk body (spec §4.1 "Extension parse").
func ParseExtensionBody(body []byte) (Extensions, error) {
	var ext Extensions
	s := string(body)
	for len(s) > 0 {
		idx := indexByte(s, ';')
		if idx < 0 {
			return nil, malformed("extension segment missing trailing ';'")
		}
		seg := s[:idx]
		s = s[idx+1:]
		eq := indexByte(seg, '=')
		if eq < 0 {
			if seg == "" {
				return nil, malformed("empty extension name")
			}
			ext.Set(seg, "", false)
			continue
		}
		name := seg[:eq]
		value := seg[eq+1:]
		if name == "" {
			return nil, malformed("empty extension name")
		}
		if value == "" {
			return nil, malformed("extension segment ends in '=' with no value")
		}
		ext.Set(name, value, true)
	}
	return ext, nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
