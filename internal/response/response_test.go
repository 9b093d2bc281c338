package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeStatusLineAndReason(t *testing.T) {
	r := New(404)
	out := r.Serialize()
	assert.Contains(t, string(out), "HTTP/1.1 404 Not Found\r\n")
	assert.Contains(t, string(out), "Server: "+serverIdent)
}

func TestSerializeUnknownStatusReason(t *testing.T) {
	r := New(799)
	out := r.Serialize()
	assert.Contains(t, string(out), "HTTP/1.1 799 Unknown\r\n")
}

func TestWithBodySetsContentLength(t *testing.T) {
	r := New(200).WithBody([]byte("hi"))
	out := r.Serialize()
	require.Contains(t, string(out), "Content-Length: 2\r\n")
	assert.Contains(t, string(out), "\r\n\r\nhi")
}

func TestSerializeEmptyBodyNoTrailingGarbage(t *testing.T) {
	r := New(204)
	out := r.Serialize()
	assert.Equal(t, byte('\n'), out[len(out)-1])
}
