package frame

import (
	"bytes"
	"fmt"
)

// EncodeHeader renders the 8-byte chunk header: 7 lowercase hex digits
// followed by the tag byte. length must fit in 7 hex digits; callers
// (Encoder) never pass a larger value.
func EncodeHeader(length int, kind Kind) []byte {
	return []byte(fmt.Sprintf("%07x%c", length, byte(kind)))
}

// EncodeChunk renders one full chunk: header + body.
func EncodeChunk(kind Kind, body []byte) []byte {
	buf := make([]byte, 0, HeaderLen+len(body))
	buf = append(buf, EncodeHeader(len(body), kind)...)
	buf = append(buf, body...)
	return buf
}

// Terminator is the length-0 data chunk marking end of a logical message.
func Terminator() []byte {
	return EncodeChunk(KindData, nil)
}

// EncodeExtensionBody renders the semicolon-terminated "name[=value];"
// concatenation described in spec §4.1.
func EncodeExtensionBody(ext Extensions) []byte {
	var buf bytes.Buffer
	for _, p := range ext {
		buf.WriteString(p.Name)
		if p.HasValue {
			buf.WriteByte('=')
			buf.WriteString(p.Value)
		}
		buf.WriteByte(';')
	}
	return buf.Bytes()
}

// EncodeExtensionChunk renders a complete extension chunk, or nil if ext
// is empty (the caller should simply omit the chunk in that case).
func EncodeExtensionChunk(ext Extensions) []byte {
	if len(ext) == 0 {
		return nil
	}
	return EncodeChunk(KindExtensions, EncodeExtensionBody(ext))
}

// EncodeDataChunks splits payload into one or more data chunks, each
// bounded by chunkSize (the session's negotiated send-chunk-size). A
// chunkSize <= 0 defaults to MaxChunkBody. An empty payload yields no
// chunks — the caller still owes the message a terminator.
func EncodeDataChunks(payload []byte, chunkSize int) [][]byte {
	if chunkSize <= 0 || chunkSize > MaxChunkBody {
		chunkSize = MaxChunkBody
	}
	if len(payload) == 0 {
		return nil
	}
	var chunks [][]byte
	for off := 0; off < len(payload); off += chunkSize {
		end := off + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, EncodeChunk(KindData, payload[off:end]))
	}
	return chunks
}

// EncodeMessage renders a complete message per the encoding contract in
// spec §4.1: an optional extension chunk, one or more data chunks (only
// if payload is non-empty), then a terminator. This is the one-shot form
// used by ordinary send(extensions, payload); sendExit uses the two-call
// pattern documented in session.SendExit instead and must not call this.
func EncodeMessage(ext Extensions, payload []byte, chunkSize int) []byte {
	var buf bytes.Buffer
	buf.Write(EncodeExtensionChunk(ext))
	for _, c := range EncodeDataChunks(payload, chunkSize) {
		buf.Write(c)
	}
	buf.Write(Terminator())
	return buf.Bytes()
}
