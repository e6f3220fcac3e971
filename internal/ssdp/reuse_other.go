//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package ssdp

import "syscall"

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
