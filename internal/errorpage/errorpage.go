// Package errorpage builds error Responses from a server's configured
// error-page map, falling back to a built-in stub. Grounded directly on
// original_source/src/error.rs's generate_error_response.
package errorpage

import (
	"fmt"
	"os"

	"github.com/akmhzj/go-localserver/internal/config"
	"github.com/akmhzj/go-localserver/internal/response"
)

// Build returns a response for status, preferring the server's configured
// error-page file when one is set and readable.
func Build(status int, server *config.ServerConfig) *response.Response {
	if server != nil {
		if path, ok := server.ErrorPages[status]; ok {
			if content, err := os.ReadFile(path); err == nil {
				r := response.New(status).WithBody(content)
				r.Headers.Set("Content-Type", "text/html")
				return r
			}
		}
	}

	body := fmt.Sprintf("<h1>%d Error</h1>", status)
	r := response.New(status).WithBody([]byte(body))
	r.Headers.Set("Content-Type", "text/html")
	return r
}
