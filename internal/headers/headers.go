// Package headers implements the case-insensitive header map shared by
// requests and responses, plus the incremental header-block parser used by
// internal/request. Keys are stored canonicalized (net/textproto's
// MIME-header casing) so lookups never depend on the wire case a client or
// script happened to send — the source this was ported from kept header
// names byte-for-byte as received, which made "Transfer-Encoding" and
// "transfer-encoding" distinct map entries; that bug is fixed here.
package headers

import (
	"bytes"
	"errors"
	"net/textproto"
)

// Headers is a case-insensitive name->value map. Duplicate header lines
// overwrite rather than accumulate: last write wins.
type Headers map[string]string

var (
	ErrMalformedHeaderLine = errors.New("malformed header-line")

	separator = []byte("\r\n")
)

func New() Headers { return Headers{} }

func canon(name string) string { return textproto.CanonicalMIMEHeaderKey(name) }

// Get looks up a header case-insensitively. Returns "" if absent.
func (h Headers) Get(name string) string {
	return h[canon(name)]
}

// Has reports whether the header is present at all, distinguishing an
// absent header from one whose value is the empty string.
func (h Headers) Has(name string) bool {
	_, ok := h[canon(name)]
	return ok
}

func (h Headers) Delete(name string) {
	delete(h, canon(name))
}

// Set stores value under name's canonical form, overwriting any prior value.
func (h Headers) Set(name, value string) {
	h[canon(name)] = value
}

// Parse consumes as many complete header lines as are available in data,
// returning how many bytes were consumed and whether the terminating blank
// line was seen. (0, false, nil) means "need more bytes", not an error.
func (h Headers) Parse(data []byte) (n int, done bool, err error) {
	off := 0
	for {
		idx := bytes.Index(data[off:], separator)
		if idx == -1 {
			return off, false, nil
		}

		line := data[off : off+idx]
		off += idx + len(separator)

		if len(line) == 0 {
			return off, true, nil
		}

		// Obsolete line folding (leading SP/HTAB) is rejected, not merged.
		if line[0] == ' ' || line[0] == '\t' {
			return 0, false, ErrMalformedHeaderLine
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return 0, false, ErrMalformedHeaderLine
		}

		nameRaw := line[:colon]
		if bytes.ContainsAny(nameRaw, " \t") {
			return 0, false, ErrMalformedHeaderLine
		}
		if !isTokenTable(nameRaw) {
			return 0, false, ErrMalformedHeaderLine
		}

		val := bytes.Trim(line[colon+1:], " \t")
		h.Set(string(nameRaw), string(val))
	}
}

var allowed [256]bool

func init() {
	for c := byte('0'); c <= '9'; c++ {
		allowed[c] = true
	}
	for c := byte('A'); c <= 'Z'; c++ {
		allowed[c] = true
	}
	for c := byte('a'); c <= 'z'; c++ {
		allowed[c] = true
	}
	for _, c := range []byte("!#$%&'*+-.^_`|~") {
		allowed[c] = true
	}
}

func isTokenTable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c > 127 || !allowed[c] {
			return false
		}
	}
	return true
}
