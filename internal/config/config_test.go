package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
servers:
  - host: 0.0.0.0
    ports: [8080, 8081]
    server_names: ["example.com"]
    error_pages:
      404: /errors/404.html
    client_max_body_size: 1048576
    routes:
      - path: /
        root: ./public
        index: index.html
      - path: /cgi/
        root: ./cgi-bin
        cgi_extensions:
          .sh: /bin/sh
      - path: /old
        redirect: /new
      - path: /ro
        methods: [GET]
`

func TestLoadDecodesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	require.Len(t, doc.Servers, 1)

	s := doc.Servers[0]
	assert.Equal(t, "0.0.0.0", s.Host)
	assert.Equal(t, []uint16{8080, 8081}, s.Ports)
	assert.Equal(t, []string{"example.com"}, s.ServerNames)
	assert.Equal(t, "/errors/404.html", s.ErrorPages[404])
	assert.Equal(t, 1048576, s.ClientMaxBodySize)
	require.Len(t, s.Routes, 4)

	assert.Equal(t, "/bin/sh", s.Routes[1].CGIExtensions[".sh"])
	assert.True(t, s.Routes[3].AllowsMethod("GET"))
	assert.False(t, s.Routes[3].AllowsMethod("DELETE"))
	assert.True(t, s.Routes[0].AllowsMethod("DELETE")) // no methods list => any allowed
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsNoServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: []\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
