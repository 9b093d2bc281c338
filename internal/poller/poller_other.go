//go:build !linux

package poller

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// pollPoller is the portable fallback for non-Linux development machines,
// built on the POSIX poll(2) syscall instead of epoll. It trades epoll's
// O(1) readiness lookup for O(registered fds) per Wait call, which is fine
// for local development and tests but not the production backend — the
// event loop always prefers poller_linux.go's epollPoller in a real
// deployment. It does not track interest sets: Add and Modify record only
// the id, and every registered fd is polled for both readable and writable
// readiness.
type pollPoller struct {
	fds map[int]int // fd -> id
}

func New() (Poller, error) {
	return &pollPoller{fds: make(map[int]int)}, nil
}

func (p *pollPoller) Add(fd int, id int, interest Interest) error {
	p.fds[fd] = id
	return nil
}

func (p *pollPoller) Modify(fd int, id int, interest Interest) error {
	p.fds[fd] = id
	return nil
}

func (p *pollPoller) Remove(fd int) error {
	delete(p.fds, fd)
	return nil
}

func (p *pollPoller) Wait(dst []Event, timeout time.Duration) ([]Event, error) {
	if len(p.fds) == 0 {
		time.Sleep(10 * time.Millisecond)
		return dst, nil
	}

	pfds := make([]unix.PollFd, 0, len(p.fds))
	ids := make([]int, 0, len(p.fds))
	for fd, id := range p.fds {
		pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN | unix.POLLOUT})
		ids = append(ids, id)
	}

	msec := -1
	if timeout >= 0 {
		msec = int(timeout.Milliseconds())
	}

	n, err := unix.Poll(pfds, msec)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return dst, nil
	}

	for i, pfd := range pfds {
		if pfd.Revents == 0 {
			continue
		}
		dst = append(dst, Event{
			ID:       ids[i],
			Readable: pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0,
			Writable: pfd.Revents&unix.POLLOUT != 0,
		})
	}
	return dst, nil
}

func (p *pollPoller) Close() error { return nil }
