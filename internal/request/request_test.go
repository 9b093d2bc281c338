package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feed pushes data through the parser and, if the parser paused in
// StateBody/StateChunkSize waiting for the connection layer to resolve and
// apply a body size limit, resumes it with the limit already configured on
// p (or none, for tests that don't care). This mirrors the handshake the
// event loop performs once the Host header is known.
func feed(p *Parser, data []byte) {
	p.Feed(data)
	if p.State() == StateBody || p.State() == StateChunkSize {
		p.ApplyMaxBodySize(p.MaxBodySize)
		p.Feed(nil)
	}
}

func TestParseSimpleGetNoBody(t *testing.T) {
	p := New()
	feed(p, []byte("GET /hello.txt HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.Equal(t, StateDone, p.State())
	assert.Equal(t, "GET", p.Request().Method.String())
	assert.Equal(t, "/hello.txt", p.Request().Target)
	assert.Equal(t, "HTTP/1.1", p.Request().Version)
	assert.Equal(t, "x", p.Request().Headers.Get("Host"))
	assert.Empty(t, p.Request().Body)
}

func TestParseContentLengthBody(t *testing.T) {
	p := New()
	feed(p, []byte("POST /upload HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"))
	require.Equal(t, StateDone, p.State())
	assert.Equal(t, []byte("hello"), p.Request().Body)
}

func TestParseChunkedBody(t *testing.T) {
	p := New()
	feed(p, []byte("POST /cgi/echo.sh HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"))
	require.Equal(t, StateDone, p.State())
	assert.Equal(t, []byte("hello"), p.Request().Body)
}

func TestParseChunkedMultipleChunks(t *testing.T) {
	p := New()
	feed(p, []byte("POST /x HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nfoo\r\n3\r\nbar\r\n0\r\n\r\n"))
	require.Equal(t, StateDone, p.State())
	assert.Equal(t, []byte("foobar"), p.Request().Body)
}

func TestParseByteAtATimeMatchesWholeFeed(t *testing.T) {
	data := []byte("POST /x HTTP/1.1\r\nHost: x\r\nContent-Length: 3\r\n\r\nabc")

	whole := New()
	feed(whole, data)

	bytewise := New()
	for _, b := range data {
		feed(bytewise, []byte{b})
	}

	assert.Equal(t, whole.State(), bytewise.State())
	assert.Equal(t, whole.Request().Body, bytewise.Request().Body)
	assert.Equal(t, whole.Request().Target, bytewise.Request().Target)
}

func TestParseRandomSplitsMatchWholeFeed(t *testing.T) {
	data := []byte("POST /x HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nabcd\r\n0\r\n\r\n")

	whole := New()
	feed(whole, data)

	splits := [][2]int{{0, 10}, {10, 30}, {30, len(data)}}
	chunked := New()
	for _, s := range splits {
		feed(chunked, data[s[0]:s[1]])
	}

	assert.Equal(t, whole.State(), chunked.State())
	assert.Equal(t, whole.Request().Body, chunked.Request().Body)
}

func TestParseMalformedRequestLine(t *testing.T) {
	p := New()
	feed(p, []byte("NOPE\r\n\r\n"))
	require.Equal(t, StateError, p.State())
	assert.ErrorIs(t, p.Err(), ErrMalformedRequestLine)
}

func TestParseMalformedContentLength(t *testing.T) {
	p := New()
	feed(p, []byte("GET / HTTP/1.1\r\nHost: x\r\nContent-Length: notanumber\r\n\r\n"))
	require.Equal(t, StateError, p.State())
	assert.ErrorIs(t, p.Err(), ErrMalformedContentLen)
}

func TestParseMalformedChunkSize(t *testing.T) {
	p := New()
	feed(p, []byte("GET / HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\nZZZ\r\n"))
	require.Equal(t, StateError, p.State())
	assert.ErrorIs(t, p.Err(), ErrMalformedChunkSize)
}

func TestParseRetainsUnconsumedBytesAcrossFeeds(t *testing.T) {
	p := New()
	feed(p, []byte("GET / HTTP/1.1\r\n"))
	assert.Equal(t, StateHeaders, p.State())
	feed(p, []byte("Host: x\r\n"))
	assert.Equal(t, StateHeaders, p.State())
	feed(p, []byte("\r\n"))
	assert.Equal(t, StateDone, p.State())
}

func TestMaxBodySizeEnforcedOnContentLength(t *testing.T) {
	p := New()
	p.MaxBodySize = 4
	feed(p, []byte("POST /x HTTP/1.1\r\nHost: x\r\nContent-Length: 10\r\n\r\n"))
	require.Equal(t, StateError, p.State())
	assert.ErrorIs(t, p.Err(), ErrPayloadTooLarge)
}

func TestMaxBodySizeEnforcedOnChunkedTotal(t *testing.T) {
	p := New()
	p.MaxBodySize = 2
	feed(p, []byte("POST /x HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n5\r\n"))
	require.Equal(t, StateError, p.State())
	assert.ErrorIs(t, p.Err(), ErrPayloadTooLarge)
}

func TestApplyMaxBodySizeRejectsOversizedContentLengthAfterHeaders(t *testing.T) {
	p := New()
	p.Feed([]byte("POST /x HTTP/1.1\r\nHost: x\r\nContent-Length: 10\r\n\r\n"))
	require.Equal(t, StateBody, p.State(), "parser should pause for the connection layer to resolve a limit")

	p.ApplyMaxBodySize(4)
	require.Equal(t, StateError, p.State())
	assert.ErrorIs(t, p.Err(), ErrPayloadTooLarge)
}

func TestUnknownMethodBecomesOther(t *testing.T) {
	p := New()
	feed(p, []byte("PATCH /x HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.Equal(t, StateDone, p.State())
	assert.Equal(t, "PATCH", p.Request().Method.String())
	assert.False(t, p.Request().Method.IsGet())
}
