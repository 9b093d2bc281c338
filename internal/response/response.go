// Package response builds and serializes HTTP/1.1 responses. Serialization
// is a pure function over Response, matching the prior
// status-line/headers/body write sequence but collapsed to a single
// byte-producing call since the event loop owns one outbound buffer per
// connection rather than writing directly to the socket.
package response

import (
	"sort"
	"strconv"

	"github.com/akmhzj/go-localserver/internal/headers"
)

const serverIdent = "go-localserver/0.1"

var reasons = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	413: "Payload Too Large",
	500: "Internal Server Error",
}

func reason(code int) string {
	if r, ok := reasons[code]; ok {
		return r
	}
	return "Unknown"
}

// Response is a status code, a header map pre-seeded with Server, and a
// body. Content-Length is the caller's responsibility; Serialize does not
// compute it.
type Response struct {
	Status  int
	Headers headers.Headers
	Body    []byte
}

// New returns a Response with the default Server header set.
func New(status int) *Response {
	h := headers.New()
	h.Set("Server", serverIdent)
	return &Response{Status: status, Headers: h}
}

// WithBody sets the body and a matching Content-Length header in one step,
// the common case for every handler path except redirects and deletes.
func (r *Response) WithBody(body []byte) *Response {
	r.Body = body
	r.Headers.Set("Content-Length", strconv.Itoa(len(body)))
	return r
}

// Serialize writes the status line, headers in a stable (sorted) order, the
// blank separator line, and the body verbatim.
func (r *Response) Serialize() []byte {
	buf := make([]byte, 0, 256+len(r.Body))
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(r.Status), 10)
	buf = append(buf, ' ')
	buf = append(buf, reason(r.Status)...)
	buf = append(buf, "\r\n"...)

	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf = append(buf, k...)
		buf = append(buf, ": "...)
		buf = append(buf, r.Headers[k]...)
		buf = append(buf, "\r\n"...)
	}

	buf = append(buf, "\r\n"...)
	buf = append(buf, r.Body...)
	return buf
}
