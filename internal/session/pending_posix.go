//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package session

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// socketPending peeks at the socket without blocking or consuming. Conns
// that are not sockets report false.
func socketPending(conn net.Conn) bool {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false
	}

	var (
		buf     [1]byte
		n       int
		recvErr error
	)
	err = raw.Read(func(fd uintptr) bool {
		n, _, recvErr = unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		return true
	})
	// n == 0 without an error is an orderly close, left to the next read.
	return err == nil && recvErr == nil && n > 0
}
