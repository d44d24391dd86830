//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package session

import "net"

func socketPending(net.Conn) bool {
	return false
}
