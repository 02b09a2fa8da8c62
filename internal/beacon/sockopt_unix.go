//go:build unix

package beacon

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Unix stacks deliver group traffic to a socket bound to the group address.
const bindGroupAddr = true

func reuseAddr(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
