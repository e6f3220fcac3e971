//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package ssdp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddrControl lets several processes share the SSDP port.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		// not every kernel has SO_REUSEPORT; ignore failure
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
