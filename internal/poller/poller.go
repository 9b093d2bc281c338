// Package poller is the readiness-driven I/O multiplexer the event loop
// blocks on. It is the Go-native analogue of the mio::Poll the prototype
// used (original_source/src/server.rs): a stable per-fd identifier space,
// level-triggered readable/writable events, and no notion of blocking reads
// or writes — the caller always gets told "ready" or "not yet", never
// suspends inside a read/write call.
//
// The platform-specific backend lives in poller_linux.go (epoll, grounded on
// MiraiMindz-watt/shockwave's pkg/shockwave/socket/tuning_linux.go use of
// golang.org/x/sys/unix) and poller_other.go (a portable fallback for
// non-Linux development machines), mirroring that package's
// tuning_linux.go/tuning_darwin.go/tuning_other.go split.
package poller

import "time"

// Interest is a bitmask of the readiness a registration cares about.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

// Event reports one fd's readiness for one pass of Wait.
type Event struct {
	ID       int
	Readable bool
	Writable bool
}

// Poller multiplexes many file descriptors behind one blocking Wait call.
type Poller interface {
	// Add registers fd under id with the given interest set.
	Add(fd int, id int, interest Interest) error
	// Modify changes the interest set for an already-registered fd.
	Modify(fd int, id int, interest Interest) error
	// Remove deregisters fd.
	Remove(fd int) error
	// Wait blocks (up to timeout, or indefinitely if timeout < 0) for at
	// least one ready fd and appends its readiness events to dst, returning
	// the extended slice.
	Wait(dst []Event, timeout time.Duration) ([]Event, error)
	// Close releases the poller's own resources.
	Close() error
}
