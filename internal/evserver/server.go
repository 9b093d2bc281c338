// Package evserver is the single-threaded, readiness-driven event loop:
// one poller instance multiplexes every listener and connection socket, and
// Run never performs a blocking read or write. It generalizes
// original_source/src/server.rs's mio-based Server::run loop to an
// arbitrary number of virtual hosts and ports, registering every bound
// listener and accepted connection into the same poller instance under a
// single stable identifier space.
package evserver

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/akmhzj/go-localserver/internal/config"
	"github.com/akmhzj/go-localserver/internal/poller"
	"github.com/akmhzj/go-localserver/internal/router"
)

// firstConnectionID is where connection identifiers start, leaving listener
// identifiers a low range below it. The prototype picked the same cutoff
// (Token(100)) for the same reason: listener identifiers are assigned
// densely from zero as listeners are bound, so any headroom below 100 is
// free for them.
const firstConnectionID = 100

// idleTimeout closes a connection that has seen no readiness activity in
// this long, mirroring the prototype's fixed 30-second TIMEOUT constant.
const idleTimeout = 30 * time.Second

// Server is the event loop itself.
type Server struct {
	poll      poller.Poller
	listeners []*boundListener
	conns     map[int]*connection
	nextID    int
	router    *router.Router
	log       *zap.Logger
}

// New binds every host:port pair declared across doc's server blocks and
// registers each listener with a fresh poller. If any listener fails to
// bind, New tears down everything it already opened and returns the
// aggregated errors.
func New(doc *config.Document, log *zap.Logger) (*Server, error) {
	p, err := poller.New()
	if err != nil {
		return nil, fmt.Errorf("creating poller: %w", err)
	}

	s := &Server{
		poll:   p,
		conns:  make(map[int]*connection),
		nextID: firstConnectionID,
		router: router.New(doc),
		log:    log,
	}

	var errs error
	listenerID := 0
	for _, srv := range doc.Servers {
		for _, port := range srv.Ports {
			bl, err := bindListener(srv.Host, port, listenerID)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			if err := s.poll.Add(bl.fd, bl.id, poller.Readable); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("registering listener %s: %w", bl.addr, err))
				unix.Close(bl.fd)
				continue
			}
			s.listeners = append(s.listeners, bl)
			listenerID++
			log.Info("listening", zap.String("addr", bl.addr))
		}
	}

	if errs != nil {
		s.shutdown()
		return nil, errs
	}
	if len(s.listeners) == 0 {
		return nil, fmt.Errorf("no listeners configured")
	}
	return s, nil
}

// Ports returns the bound TCP port for every listener, in bind order. This
// is how a caller discovers the actual port chosen for a ":0" ephemeral
// bind, e.g. in tests.
func (s *Server) Ports() []uint16 {
	ports := make([]uint16, len(s.listeners))
	for i, l := range s.listeners {
		ports[i] = l.port
	}
	return ports
}

func (s *Server) listenerByID(id int) *boundListener {
	for _, l := range s.listeners {
		if l.id == id {
			return l
		}
	}
	return nil
}

// Run services readiness events until ctx is canceled, then closes every
// open socket and returns.
func (s *Server) Run(ctx context.Context) error {
	events := make([]poller.Event, 0, 256)
	readBuf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		default:
		}

		var err error
		events, err = s.poll.Wait(events[:0], time.Second)
		if err != nil {
			return fmt.Errorf("poll wait: %w", err)
		}

		for _, ev := range events {
			if l := s.listenerByID(ev.ID); l != nil {
				s.acceptAll(l)
				continue
			}
			conn, ok := s.conns[ev.ID]
			if !ok {
				continue
			}
			conn.lastActivity = time.Now()
			if ev.Readable {
				s.handleReadable(conn, readBuf)
			}
			if ev.Writable {
				s.handleWritable(conn)
			}
		}

		s.sweepIdle()
		s.reapClosed()
	}
}

// acceptAll drains every pending connection on l, since level-triggered
// readiness only guarantees at least one is waiting.
func (s *Server) acceptAll(l *boundListener) {
	for {
		fd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			s.log.Warn("accept failed", zap.String("listener", l.addr), zap.Error(err))
			return
		}

		id := s.nextID
		s.nextID++

		remote := "-"
		if sa, err := unix.Getpeername(fd); err == nil {
			remote = sockaddrHost(sa)
		}

		if err := s.poll.Add(fd, id, poller.Readable|poller.Writable); err != nil {
			s.log.Warn("registering connection failed", zap.Error(err))
			unix.Close(fd)
			continue
		}
		s.conns[id] = newConnection(id, fd, remote)
	}
}

func (s *Server) handleReadable(conn *connection, buf []byte) {
	for {
		n, err := unix.Read(conn.fd, buf)
		if n > 0 {
			conn.parser.Feed(buf[:n])
			conn.drain(s.router, s.log)
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			conn.closing = true
			return
		}
		if n == 0 {
			conn.closing = true
			return
		}
	}
}

// handleWritable attempts a single write per call, per spec §4.5 step 3, so
// one connection with a large queued response can't monopolize the loop
// with repeated write syscalls before other connections' events are
// serviced; the remainder waits for the connection's next writable event.
func (s *Server) handleWritable(conn *connection) {
	if !conn.pendingWrite() {
		return
	}

	n, err := unix.Write(conn.fd, conn.outbound[conn.outPos:])
	if n > 0 {
		conn.outPos += n
	}
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		conn.closing = true
		return
	}

	if !conn.pendingWrite() {
		conn.outbound = conn.outbound[:0]
		conn.outPos = 0
	}
}

// sweepIdle marks every connection idle past idleTimeout for closing, the
// same role the prototype's retain() sweep played at the end of each loop
// iteration.
func (s *Server) sweepIdle() {
	now := time.Now()
	for _, conn := range s.conns {
		if now.Sub(conn.lastActivity) > idleTimeout {
			conn.closing = true
		}
	}
}

// reapClosed removes and closes every connection marked for closing whose
// outbound buffer has fully drained.
func (s *Server) reapClosed() {
	for id, conn := range s.conns {
		if conn.closing && !conn.pendingWrite() {
			s.poll.Remove(conn.fd)
			unix.Close(conn.fd)
			delete(s.conns, id)
		}
	}
}

func (s *Server) shutdown() error {
	for _, conn := range s.conns {
		s.poll.Remove(conn.fd)
		unix.Close(conn.fd)
	}
	for _, l := range s.listeners {
		s.poll.Remove(l.fd)
		unix.Close(l.fd)
	}
	return s.poll.Close()
}
