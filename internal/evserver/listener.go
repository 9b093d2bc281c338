package evserver

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

const listenBacklog = 1024

// boundListener is a listening socket paired with the poller identifier it
// was registered under. Listener identifiers occupy the low range below
// firstConnectionID, the same split the prototype made between its
// listeners vector and its Token(100)-and-up connection map.
type boundListener struct {
	fd   int
	id   int
	addr string
	port uint16
}

func bindListener(host string, port uint16, id int) (*boundListener, error) {
	ip, err := resolveIP(host)
	if err != nil {
		return nil, err
	}

	var fd int
	var sa unix.Sockaddr
	if v4 := ip.To4(); v4 != nil {
		fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
		if err != nil {
			return nil, fmt.Errorf("socket: %w", err)
		}
		var addr [4]byte
		copy(addr[:], v4)
		sa = &unix.SockaddrInet4{Port: int(port), Addr: addr}
	} else {
		fd, err = unix.Socket(unix.AF_INET6, unix.SOCK_STREAM, 0)
		if err != nil {
			return nil, fmt.Errorf("socket: %w", err)
		}
		var addr [16]byte
		copy(addr[:], ip.To16())
		sa = &unix.SockaddrInet6{Port: int(port), Addr: addr}
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s:%d: %w", host, port, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %s:%d: %w", host, port, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblocking: %w", err)
	}

	boundPort := port
	if name, err := unix.Getsockname(fd); err == nil {
		switch a := name.(type) {
		case *unix.SockaddrInet4:
			boundPort = uint16(a.Port)
		case *unix.SockaddrInet6:
			boundPort = uint16(a.Port)
		}
	}

	return &boundListener{fd: fd, id: id, addr: fmt.Sprintf("%s:%d", host, boundPort), port: boundPort}, nil
}

func resolveIP(host string) (net.IP, error) {
	if host == "" {
		return net.IPv4zero, nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("resolving host %q: %w", host, err)
	}
	return ips[0], nil
}

// sockaddrHost renders a peer address for access logging. It never fails:
// an address shape it doesn't recognize just logs as "-".
func sockaddrHost(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(a.Addr[:]).String()
	case *unix.SockaddrInet6:
		return net.IP(a.Addr[:]).String()
	default:
		return "-"
	}
}
