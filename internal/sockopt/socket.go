// Package sockopt owns the raw descriptor plumbing a Connection's
// socket handle needs: exclusive fd ownership, listen with the right
// socket options, and a single non-blocking accept that reports EAGAIN
// so the caller can drain until it.
//
// Grounded on original_source/Net/Socket.hpp and the trimmed
// ysyzqq-gnet listener_unix.go, generalized to use go-reuseport for the
// SO_REUSEPORT listener path instead of hand-rolled setsockopt calls.
package sockopt

import (
	"net"

	"github.com/libp2p/go-reuseport"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Handle exclusively owns one descriptor. Close is idempotent and safe
// to call more than once; the descriptor itself is closed exactly once
// no matter how many Close calls arrive.
type Handle struct {
	fd     int
	closed bool
}

// NewHandle wraps an already-open, already-nonblocking descriptor.
func NewHandle(fd int) *Handle { return &Handle{fd: fd} }

func (h *Handle) Fd() int { return h.fd }

// Close releases the descriptor exactly once.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return errors.Wrap(unix.Close(h.fd), "sockopt: close")
}

// ListenOptions configures the listening socket constructed by Listen.
type ListenOptions struct {
	ReusePort bool
	Backlog   int // defaults to 1024 when zero
}

// Listen builds a non-blocking, listening TCP socket with SO_REUSEADDR
// and SO_REUSEPORT (when requested) set before bind/listen, and
// TCP_NODELAY set on the listening descriptor afterwards.
func Listen(network, address string, opts ListenOptions) (*Handle, net.Addr, error) {
	if opts.Backlog <= 0 {
		opts.Backlog = 1024
	}

	var ln net.Listener
	var err error
	if opts.ReusePort {
		// go-reuseport sets SO_REUSEADDR|SO_REUSEPORT internally before
		// bind(2).
		ln, err = reuseport.Listen(network, address)
	} else {
		ln, err = net.Listen(network, address)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "sockopt: listen")
	}

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, nil, errors.New("sockopt: listener is not TCP")
	}
	f, err := tcpLn.File()
	if err != nil {
		ln.Close()
		return nil, nil, errors.Wrap(err, "sockopt: dup listener fd")
	}
	// File() dup's the fd, and the *os.File closes its copy when it is
	// closed or garbage-collected, so the raw fd kept here is a further
	// dup; the net.Listener and the *os.File are both closed at once and
	// only the raw fd is kept going forward.
	addr := tcpLn.Addr()
	fd, err := unix.Dup(int(f.Fd()))
	f.Close()
	ln.Close()
	if err != nil {
		return nil, nil, errors.Wrap(err, "sockopt: dup listener fd")
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, nil, errors.Wrap(err, "sockopt: set nonblocking")
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		return nil, nil, errors.Wrap(err, "sockopt: set TCP_NODELAY")
	}
	if err := unix.Listen(fd, opts.Backlog); err != nil {
		unix.Close(fd)
		return nil, nil, errors.Wrap(err, "sockopt: listen backlog")
	}

	return &Handle{fd: fd}, addr, nil
}

// Accept drains at most one ready connection from a listening handle,
// returning the new non-blocking descriptor. The zero value with a nil
// error means "no more connections ready" (EAGAIN) — callers drive the
// drain-to-EAGAIN loop themselves.
func (h *Handle) Accept() (fd int, sa unix.Sockaddr, ok bool, err error) {
	nfd, sa, err := unix.Accept(h.fd)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, nil, false, nil
		}
		return 0, nil, false, errors.Wrap(err, "sockopt: accept")
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return 0, nil, false, errors.Wrap(err, "sockopt: set accepted fd nonblocking")
	}
	return nfd, sa, true, nil
}

// SockaddrToTCPAddr converts a raw unix.Sockaddr (as returned by
// Accept) into a *net.TCPAddr for Connection.RemoteAddr.
func SockaddrToTCPAddr(sa unix.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	default:
		return nil
	}
}
