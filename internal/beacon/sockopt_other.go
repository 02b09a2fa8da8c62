//go:build !unix && !windows

package beacon

import "syscall"

const bindGroupAddr = false

func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
