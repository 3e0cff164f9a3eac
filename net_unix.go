package reactor

import "golang.org/x/sys/unix"

// unixWrite performs a single, non-retrying write(2), mirroring
// TcpConnection::send's direct-write attempt in
// original_source/Net/TcpConnection.hpp before any data is spilled into
// the output Buffer.
func unixWrite(fd int, data []byte) (int, error) {
	return unix.Write(fd, data)
}

// isRetryable reports whether err represents transient, would-block
// I/O rather than a fatal failure.
func isRetryable(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}
