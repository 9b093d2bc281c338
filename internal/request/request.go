// Package request implements the incremental HTTP/1.1 request parser: a
// pull-style state machine that consumes bytes as they arrive on a
// non-blocking socket and never itself performs I/O. The state names and
// transition table follow the ParseState design directly (RequestLine ->
// Headers -> Body|ChunkSize -> ... -> Done|Error), generalizing the
// teacher's two-state (start-line, headers) parser into the full chain
// including chunked transfer-encoding.
package request

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/intuitivelabs/bytescase"

	"github.com/akmhzj/go-localserver/internal/headers"
	"github.com/akmhzj/go-localserver/internal/httpmethod"
)

// ParseState names every state the parser can occupy. RequestLine is the
// initial state; Done and Error are terminal.
type ParseState int

const (
	StateRequestLine ParseState = iota
	StateHeaders
	StateBody
	StateChunkSize
	StateChunkData
	StateChunkTrailer
	StateDone
	StateError
)

var stateNames = map[ParseState]string{
	StateRequestLine:  "request_line",
	StateHeaders:      "headers",
	StateBody:         "body",
	StateChunkSize:    "chunk_size",
	StateChunkData:    "chunk_data",
	StateChunkTrailer: "chunk_trailer",
	StateDone:         "done",
	StateError:        "error",
}

func (s ParseState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

var (
	ErrMalformedRequestLine = errors.New("malformed request-line")
	ErrMalformedChunkSize   = errors.New("malformed chunk size")
	ErrMalformedContentLen  = errors.New("malformed content-length")
	ErrPayloadTooLarge      = errors.New("request body exceeds configured limit")

	crlf = []byte("\r\n")
)

// Request is the request being assembled by the parser. Body is complete
// only once the parser reaches StateDone. A Content-Length body is set in
// one step on the way to StateDone; a chunked body is not held back until
// then: each decoded chunk is appended to Body as it arrives.
type Request struct {
	Method  httpmethod.Method
	Target  string
	Version string
	Headers headers.Headers
	Body    []byte
}

// Parser is an incremental, non-blocking HTTP/1.1 request parser.
//
// The input buffer uses cursor-into-appendable-buffer semantics rather than
// the front-draining "copy everything down on every consume" scheme the
// prototype used: consumed bytes only advance a cursor, and the backing
// array is compacted (a single copy) when the unconsumed remainder has
// shrunk enough to make future appends cheap again. This gives O(1)
// amortized append and O(k) consumption of a k-byte prefix, while still
// exposing a stable view of the unconsumed bytes at buf[pos:].
type Parser struct {
	state ParseState
	err   error

	buf []byte
	pos int

	req Request

	chunkSize int

	// MaxBodySize, when positive, caps the total body bytes the parser will
	// accept during StateBody/StateChunkData before failing with
	// ErrPayloadTooLarge. It is set by the connection layer once the
	// virtual host (and therefore its client_max_body_size) is known from
	// the Host header, which is only available after StateHeaders — the
	// parser does not resolve configuration itself.
	MaxBodySize int
}

// New returns a parser ready to read a request from the start.
func New() *Parser {
	return &Parser{
		state: StateRequestLine,
		req: Request{
			Headers: headers.New(),
		},
	}
}

func (p *Parser) State() ParseState { return p.state }
func (p *Parser) Err() error        { return p.err }
func (p *Parser) Request() *Request { return &p.req }

// ApplyMaxBodySize installs the body size limit resolved from the request's
// virtual host once headers are complete. Callers must invoke this exactly
// once per request, while the parser is paused in StateBody or
// StateChunkSize, before feeding it any more data. When the parser is
// already sitting in StateBody with a Content-Length that exceeds n, it
// fails the request immediately instead of waiting for more body bytes to
// arrive.
func (p *Parser) ApplyMaxBodySize(n int) {
	p.MaxBodySize = n
	if p.state == StateBody && n > 0 && int64(p.contentLength()) > int64(n) {
		p.setErr(ErrPayloadTooLarge)
	}
}

func (p *Parser) setErr(err error) {
	p.err = err
	p.state = StateError
}

// unconsumed returns the view of buffered bytes not yet consumed.
func (p *Parser) unconsumed() []byte { return p.buf[p.pos:] }

// consume advances the cursor past n bytes and compacts the backing array
// once the consumed prefix dominates it, so the buffer doesn't grow forever
// across a long-lived keep-alive connection.
func (p *Parser) consume(n int) {
	p.pos += n
	if p.pos > 0 && (p.pos == len(p.buf) || p.pos*2 > cap(p.buf)) {
		remaining := copy(p.buf, p.buf[p.pos:])
		p.buf = p.buf[:remaining]
		p.pos = 0
	}
}

// Feed appends newly-read bytes and advances the state machine as far as it
// can go without blocking. It never returns an error directly — callers
// inspect State()/Err() afterwards, matching the "errors observed, not
// returned" contract.
func (p *Parser) Feed(data []byte) {
	if len(data) > 0 {
		p.buf = append(p.buf, data...)
	}

	for {
		switch p.state {
		case StateRequestLine:
			if !p.stepRequestLine() {
				return
			}
		case StateHeaders:
			if !p.stepHeaders() {
				return
			}
		case StateBody:
			if !p.stepBody() {
				return
			}
		case StateChunkSize:
			if !p.stepChunkSize() {
				return
			}
		case StateChunkData:
			if !p.stepChunkData() {
				return
			}
		case StateChunkTrailer:
			if !p.stepChunkTrailer() {
				return
			}
		case StateDone, StateError:
			return
		}
	}
}

// stepRequestLine returns false when it needs more bytes (or has
// transitioned to a terminal state) and should stop the Feed loop.
func (p *Parser) stepRequestLine() bool {
	data := p.unconsumed()
	idx := bytes.Index(data, crlf)
	if idx == -1 {
		return false
	}

	tokens := bytes.Fields(data[:idx])
	if len(tokens) != 3 {
		p.setErr(ErrMalformedRequestLine)
		return false
	}

	p.req.Method = httpmethod.Parse(string(tokens[0]))
	p.req.Target = string(tokens[1])
	p.req.Version = string(tokens[2])

	p.consume(idx + len(crlf))
	p.state = StateHeaders
	return true
}

func (p *Parser) stepHeaders() bool {
	n, done, err := p.req.Headers.Parse(p.unconsumed())
	if err != nil {
		p.setErr(err)
		return false
	}
	if n == 0 && !done {
		return false
	}
	p.consume(n)
	if !done {
		return true
	}

	te := p.req.Headers.Get("Transfer-Encoding")
	if te != "" {
		if bytescase.CmpEq([]byte(te), []byte("chunked")) {
			p.state = StateChunkSize
			// Yield here: the connection layer resolves the virtual host
			// (and its client_max_body_size) from the Host header we just
			// finished parsing, via ApplyMaxBodySize, before any chunk data
			// is consumed.
			return false
		}
		// Any other framing header without chunked falls through to the
		// Content-Length/no-body branches below, mirroring the prototype.
	}

	clStr := p.req.Headers.Get("Content-Length")
	if clStr == "" {
		p.state = StateDone
		return true
	}

	cl, err := strconv.ParseInt(clStr, 10, 64)
	if err != nil || cl < 0 {
		p.setErr(ErrMalformedContentLen)
		return false
	}
	if cl == 0 {
		p.state = StateDone
		return true
	}
	if p.MaxBodySize > 0 && cl > int64(p.MaxBodySize) {
		p.setErr(ErrPayloadTooLarge)
		return false
	}
	p.state = StateBody
	// Yield for the same reason as the chunked branch above: a request with
	// no previously-applied limit (first request on a connection) must let
	// the caller resolve and apply one before body bytes are accepted.
	return false
}

func (p *Parser) stepBody() bool {
	want := p.contentLength()
	data := p.unconsumed()
	if len(data) < want {
		return false
	}
	p.req.Body = append(p.req.Body, data[:want]...)
	p.consume(want)
	p.state = StateDone
	return true
}

func (p *Parser) contentLength() int {
	cl, _ := strconv.ParseInt(p.req.Headers.Get("Content-Length"), 10, 64)
	return int(cl)
}

func (p *Parser) stepChunkSize() bool {
	data := p.unconsumed()
	idx := bytes.Index(data, crlf)
	if idx == -1 {
		return false
	}

	line := bytes.TrimSpace(data[:idx])
	size, err := strconv.ParseUint(string(line), 16, 63)
	if err != nil {
		p.setErr(ErrMalformedChunkSize)
		return false
	}
	p.chunkSize = int(size)
	p.consume(idx + len(crlf))

	if size == 0 {
		p.state = StateChunkTrailer
	} else {
		if p.MaxBodySize > 0 && len(p.req.Body)+p.chunkSize > p.MaxBodySize {
			p.setErr(ErrPayloadTooLarge)
			return false
		}
		p.state = StateChunkData
	}
	return true
}

func (p *Parser) stepChunkData() bool {
	need := p.chunkSize + len(crlf)
	data := p.unconsumed()
	if len(data) < need {
		return false
	}
	p.req.Body = append(p.req.Body, data[:p.chunkSize]...)
	p.consume(need)
	p.state = StateChunkSize
	return true
}

func (p *Parser) stepChunkTrailer() bool {
	data := p.unconsumed()
	idx := bytes.Index(data, crlf)
	if idx == -1 {
		return false
	}
	if idx == 0 {
		p.consume(len(crlf))
		p.state = StateDone
		return true
	}
	// Trailer header lines are consumed and discarded, per baseline scope.
	p.consume(idx + len(crlf))
	return true
}
