package frame_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendap-hyrax/besd/internal/errs"
	"github.com/opendap-hyrax/besd/internal/ppt/frame"
)

func TestEncodeChunkHeaderShape(t *testing.T) {
	c := frame.EncodeChunk(frame.KindData, []byte("hello"))
	require.Len(t, c, frame.HeaderLen+5)
	assert.Equal(t, "0000005d", string(c[:8]))
	assert.Equal(t, "hello", string(c[8:]))
}

func TestTerminatorIsExactlyEightZeroD(t *testing.T) {
	assert.Equal(t, "0000000d", string(frame.Terminator()))
}

func TestExtensionRoundTrip(t *testing.T) {
	var ext frame.Extensions
	ext.Set("trace", "1", true)
	ext.Set("flag", "", false)

	body := frame.EncodeExtensionBody(ext)
	got, err := frame.ParseExtensionBody(body)
	require.NoError(t, err)

	require.Len(t, got, 2)
	v, has, present := got.Get("trace")
	assert.True(t, present)
	assert.True(t, has)
	assert.Equal(t, "1", v)

	_, has, present = got.Get("flag")
	assert.True(t, present)
	assert.False(t, has)
}

func TestExtensionBareNameNoValue(t *testing.T) {
	got, err := frame.ParseExtensionBody([]byte("name;"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "name", got[0].Name)
	assert.False(t, got[0].HasValue)
}

func TestExtensionDuplicateLastOccurrenceWins(t *testing.T) {
	got, err := frame.ParseExtensionBody([]byte("a=1;b=2;a=3;"))
	require.NoError(t, err)
	require.Len(t, got, 2, "duplicate name must not create a second entry")
	v, _, _ := got.Get("a")
	assert.Equal(t, "3", v)
}

func TestExtensionMalformedCases(t *testing.T) {
	cases := []string{
		"=value;",    // empty name
		"name=;",     // trailing '=' with no value
		"name=value", // missing trailing ';'
	}
	for _, c := range cases {
		_, err := frame.ParseExtensionBody([]byte(c))
		require.Error(t, err, c)
		assert.Equal(t, errs.MalformedFrame, errs.CodeOf(err), c)
	}
}

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	for _, length := range []int{0, 1, 5, 255, 0x0FFFFFF} {
		hdr := frame.EncodeHeader(length, frame.KindData)
		require.Len(t, hdr, 8)
		gotLen, kind, err := frame.ReadHeader(bytes.NewReader(hdr))
		require.NoError(t, err)
		assert.Equal(t, length, gotLen)
		assert.Equal(t, frame.KindData, kind)
	}
}

func TestMaxChunkBodyBoundary(t *testing.T) {
	hdr := frame.EncodeHeader(frame.MaxChunkBody, frame.KindData)
	assert.Equal(t, "0ffffffd", string(hdr))
}

func TestReadHeaderPeerClosedOnCleanEOF(t *testing.T) {
	_, _, err := frame.ReadHeader(bytes.NewReader(nil))
	require.Error(t, err)
	assert.Equal(t, errs.PeerClosed, errs.CodeOf(err))
}

func TestReadHeaderMalformedOnShortRead(t *testing.T) {
	_, _, err := frame.ReadHeader(bytes.NewReader([]byte("0000")))
	require.Error(t, err)
	assert.Equal(t, errs.MalformedFrame, errs.CodeOf(err))
}

func TestReadHeaderMalformedOnBadTag(t *testing.T) {
	_, _, err := frame.ReadHeader(strings.NewReader("0000000z"))
	require.Error(t, err)
	assert.Equal(t, errs.MalformedFrame, errs.CodeOf(err))
}

func TestReadHeaderMalformedOnNonHexLength(t *testing.T) {
	_, _, err := frame.ReadHeader(strings.NewReader("zzzzzzzd"))
	require.Error(t, err)
	assert.Equal(t, errs.MalformedFrame, errs.CodeOf(err))
}

func TestEncodeMessageEchoScenario(t *testing.T) {
	// Scenario 2 from spec §8: extensions + payload "hello".
	var ext frame.Extensions
	ext.Set("trace", "1", true)

	msg := frame.EncodeMessage(ext, []byte("hello"), 0)

	expect := "0000008xtrace=1;" + "0000005dhello" + "0000000d"
	assert.Equal(t, expect, string(msg))
}

func TestEncodeMessageSplitsAcrossChunkSize(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 10)
	chunks := frame.EncodeDataChunks(payload, 4)
	require.Len(t, chunks, 3)

	var rebuilt []byte
	for _, c := range chunks {
		n, kind, err := frame.ReadHeader(bytes.NewReader(c[:8]))
		require.NoError(t, err)
		assert.Equal(t, frame.KindData, kind)
		rebuilt = append(rebuilt, c[8:8+n]...)
	}
	assert.Equal(t, payload, rebuilt)
}
