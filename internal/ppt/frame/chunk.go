// Package frame implements the PPT wire grammar (spec §4.1): chunked,
// length-prefixed framing with inline extension metadata.
//
//	message         = [ extension-chunk ] , 1*data-chunk , terminator
//	extension-chunk = "0000000" 7HEXDIG "x" , extension-body
//	data-chunk      = "0000000" 7HEXDIG "d" , payload
//	terminator      = "0000000" "0000000" "d"
//	extension-body  = *( name [ "=" value ] ";" )
package frame

import "github.com/opendap-hyrax/besd/internal/errs"

// Kind is the single ASCII tag byte following the 7-hex-digit length.
type Kind byte

const (
	KindData       Kind = 'd'
	KindExtensions Kind = 'x'
)

// HeaderLen is the fixed 8-byte chunk header: 7 hex digits + 1 tag byte.
const HeaderLen = 8

// MaxChunkBody is the largest body a single chunk header can express:
// 0x0FFFFFF bytes (7 hex digits, so technically up to 0xFFFFFFF, but the
// wire grammar reserves the top nibble and the C original caps it at
// 0x0FFFFFF — preserved here for wire compatibility).
const MaxChunkBody = 0x0FFFFFF

// Pair is one name/optional-value entry of an extension map. HasValue is
// false for "name;" (bare name, no "=").
type Pair struct {
	Name     string
	Value    string
	HasValue bool
}

// Extensions is an ordered name -> optional-value mapping. Duplicate
// names update the value in place at the first occurrence's position,
// per spec §3: "duplicates are not expected but the receiver must accept
// the last occurrence."
type Extensions []Pair

// Set inserts or updates name, preserving first-seen order.
func (e *Extensions) Set(name, value string, hasValue bool) {
	for i := range *e {
		if (*e)[i].Name == name {
			(*e)[i].Value = value
			(*e)[i].HasValue = hasValue
			return
		}
	}
	*e = append(*e, Pair{Name: name, Value: value, HasValue: hasValue})
}

// Get returns the value for name and whether it was present at all.
func (e Extensions) Get(name string) (value string, hasValue bool, present bool) {
	for _, p := range e {
		if p.Name == name {
			return p.Value, p.HasValue, true
		}
	}
	return "", false, false
}

// StatusExitNow is the well-known extension used as the orderly-shutdown
// and exit-signal control token (spec §4.4, §4.5 step b).
const (
	ExtStatus      = "status"
	StatusExitNow  = "exit_now"
	StatusError    = "error"
	ExtExit        = "exit"
	ExtExitTrueStr = "true"
)

// NewExitExtensions builds the {"status": "exit_now"} extension map used
// by sendExit and by the synthetic EOF-as-exit receive path.
func NewExitExtensions() Extensions {
	var e Extensions
	e.Set(ExtStatus, StatusExitNow, true)
	return e
}

// malformed is a small helper to keep call sites terse.
func malformed(msg string) error {
	return errs.New(errs.MalformedFrame, msg)
}
