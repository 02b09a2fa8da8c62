//go:build windows

package beacon

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// Windows refuses to bind a multicast address; bind the wildcard instead.
const bindGroupAddr = false

func reuseAddr(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
