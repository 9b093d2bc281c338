package evserver

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akmhzj/go-localserver/internal/config"
)

func TestServeStaticFileOverRealSocket(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi there"), 0o644))

	doc := &config.Document{Servers: []config.ServerConfig{{
		Host:  "127.0.0.1",
		Ports: []uint16{0},
		Routes: []config.RouteConfig{
			{Path: "/", Root: dir},
		},
	}}}

	srv, err := New(doc, zap.NewNop())
	require.NoError(t, err)
	port := srv.Ports()[0]
	require.NotZero(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	conn := dialWithRetry(t, port)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hello.txt HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	body := string(buf[:n])
	assert.Contains(t, body, "200")
	assert.Contains(t, body, "hi there")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}

func TestNewRegistersOneListenerPerConfiguredPort(t *testing.T) {
	doc := &config.Document{Servers: []config.ServerConfig{
		{Host: "127.0.0.1", Ports: []uint16{0, 0}, Routes: []config.RouteConfig{{Path: "/"}}},
		{Host: "127.0.0.1", Ports: []uint16{0}, Routes: []config.RouteConfig{{Path: "/"}}},
	}}

	srv, err := New(doc, zap.NewNop())
	require.NoError(t, err)
	defer srv.shutdown()

	assert.Len(t, srv.Ports(), 3)
	assert.Equal(t, firstConnectionID, srv.nextID)
}

func dialWithRetry(t *testing.T, port uint16) net.Conn {
	t.Helper()
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port)))
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatalf("dialing %s: %v", addr, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
