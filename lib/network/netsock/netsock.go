//go:build unix

package netsock

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ListenBacklog is the connection backlog passed to listen(2).
const ListenBacklog = 8

// --------------------------------------------------------------------------
// Address conversion (host byte order <-> sockaddr)
// --------------------------------------------------------------------------

// addrBytes converts a host-order IPv4 address to the 4-byte network-order
// representation used by unix.SockaddrInet4.
func addrBytes(host uint32) [4]byte {
	return [4]byte{
		byte(host >> 24),
		byte(host >> 16),
		byte(host >> 8),
		byte(host),
	}
}

// addrHost converts the 4-byte network-order representation back to a
// host-order IPv4 address.
func addrHost(addr [4]byte) uint32 {
	return uint32(addr[0])<<24 | uint32(addr[1])<<16 | uint32(addr[2])<<8 | uint32(addr[3])
}

// --------------------------------------------------------------------------
// Socket setup
// --------------------------------------------------------------------------

// Dial creates a TCP socket, connects it to the given host-order IPv4 address
// and port, and enables TCP_NODELAY. It returns the connected descriptor.
func Dial(host uint32, port uint16) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, errors.Wrap(err, "socket")
	}

	sa := &unix.SockaddrInet4{Port: int(port), Addr: addrBytes(host)}
	if err := unix.Connect(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "connect")
	}

	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "setsockopt TCP_NODELAY")
	}

	return fd, nil
}

// Listen creates a TCP listening socket bound to 0.0.0.0:port with
// SO_REUSEADDR and TCP_NODELAY enabled and a backlog of ListenBacklog.
// Passing port 0 lets the kernel pick a free port (see LocalPort).
func Listen(port uint16) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, errors.Wrap(err, "socket")
	}

	// Enable the socket to be bound to a previously used address again.
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "setsockopt SO_REUSEADDR")
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "setsockopt TCP_NODELAY")
	}

	sa := &unix.SockaddrInet4{Port: int(port)} // INADDR_ANY
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "bind")
	}

	if err := unix.Listen(fd, ListenBacklog); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "listen")
	}

	return fd, nil
}

// Accept accepts one pending connection on the listening descriptor and
// returns the client descriptor together with the peer's host-order IPv4
// address and port.
func Accept(fd int) (int, uint32, uint16, error) {
	for {
		cfd, sa, err := unix.Accept(fd)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return -1, 0, 0, errors.Wrap(err, "accept")
		}

		inet4, ok := sa.(*unix.SockaddrInet4)
		if !ok {
			_ = unix.Close(cfd)
			return -1, 0, 0, errors.New("accept: peer is not an IPv4 endpoint")
		}
		return cfd, addrHost(inet4.Addr), uint16(inet4.Port), nil
	}
}

// LocalPort returns the port the descriptor is bound to.
func LocalPort(fd int) (uint16, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, errors.Wrap(err, "getsockname")
	}
	inet4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, errors.New("getsockname: socket is not an IPv4 endpoint")
	}
	return uint16(inet4.Port), nil
}

// --------------------------------------------------------------------------
// I/O
// --------------------------------------------------------------------------

// PollIn waits up to timeoutMs milliseconds for the descriptor to become
// readable. It returns true if the descriptor is ready for reading, even when
// an error bit (POLLERR/POLLHUP) is reported alongside POLLIN. An event without
// POLLIN (POLLERR/POLLHUP/POLLNVAL alone) is reported as an error, mirroring a
// failed poll(2).
func PollIn(fd int, timeoutMs int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, timeoutMs)
		if err == unix.EINTR {
			// The Go runtime interrupts blocking syscalls for goroutine
			// preemption; retry instead of reporting a socket failure.
			continue
		}
		if err != nil {
			return false, errors.Wrap(err, "poll")
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			// Only POLLIN was requested, so this is an error event.
			return false, errors.Errorf("poll: error event 0x%x", fds[0].Revents)
		}
		return true, nil
	}
}

// Send writes data to the descriptor with a single write attempt and returns
// the number of bytes written.
func Send(fd int, data []byte) (int, error) {
	for {
		n, err := unix.Write(fd, data)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return n, errors.Wrap(err, "send")
		}
		return n, nil
	}
}

// Recv reads up to len(buf) bytes from the descriptor. A return of (0, nil)
// means the peer has performed an orderly shutdown.
func Recv(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return n, errors.Wrap(err, "recv")
		}
		return n, nil
	}
}

// Close closes the descriptor.
func Close(fd int) error {
	if err := unix.Close(fd); err != nil {
		return errors.Wrap(err, "close")
	}
	return nil
}
