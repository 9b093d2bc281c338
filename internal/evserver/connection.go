package evserver

import (
	"time"

	"go.uber.org/zap"

	"github.com/akmhzj/go-localserver/internal/logging"
	"github.com/akmhzj/go-localserver/internal/request"
	"github.com/akmhzj/go-localserver/internal/response"
	"github.com/akmhzj/go-localserver/internal/router"
)

// connection is one accepted socket and the request parser pipelined
// through it. A connection outlives any single request: once a request
// reaches StateDone, the parser is replaced and the next request starts
// accumulating from whatever bytes are already buffered, supporting
// pipelined keep-alive traffic.
type connection struct {
	id     int
	fd     int
	remote string

	parser           *request.Parser
	bodyLimitApplied bool
	requestStart     time.Time

	outbound []byte
	outPos   int

	closing      bool
	lastActivity time.Time
}

func newConnection(id, fd int, remote string) *connection {
	now := time.Now()
	return &connection{
		id:           id,
		fd:           fd,
		remote:       remote,
		parser:       request.New(),
		requestStart: now,
		lastActivity: now,
	}
}

// pendingWrite reports whether there is unsent response data queued.
func (c *connection) pendingWrite() bool { return c.outPos < len(c.outbound) }

// drain advances the parser as far as complete requests allow, dispatching
// each to rtr and appending its serialized response to the outbound buffer.
// It pauses in StateBody/StateChunkSize exactly once per request to let the
// connection layer resolve the request's virtual host (and therefore its
// client_max_body_size) before any body bytes are accepted.
func (c *connection) drain(rtr *router.Router, log *zap.Logger) {
	for {
		switch c.parser.State() {
		case request.StateBody, request.StateChunkSize:
			if c.bodyLimitApplied {
				return
			}
			host := c.parser.Request().Headers.Get("Host")
			limit := rtr.SelectServer(host).ClientMaxBodySize
			c.parser.ApplyMaxBodySize(limit)
			c.bodyLimitApplied = true
			if c.parser.State() == request.StateError {
				continue
			}
			c.parser.Feed(nil)
		case request.StateDone:
			req := c.parser.Request()
			resp := rtr.Handle(req)
			c.queue(resp)
			logging.Access(log, c.remote, req.Method.String(), req.Target, resp.Status, time.Since(c.requestStart))
			c.parser = request.New()
			c.bodyLimitApplied = false
			c.requestStart = time.Now()
		case request.StateError:
			c.queue(errorResponse(c.parser.Err()))
			c.closing = true
			return
		default:
			return
		}
	}
}

func (c *connection) queue(resp *response.Response) {
	c.outbound = append(c.outbound, resp.Serialize()...)
}

func errorResponse(err error) *response.Response {
	if err == request.ErrPayloadTooLarge {
		return response.New(413)
	}
	return response.New(400)
}
