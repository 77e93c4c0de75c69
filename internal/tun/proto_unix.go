//go:build unix

package tun

import "golang.org/x/sys/unix"

// Protocol families used to tag packets written to the device.
const (
	ProtoIPv4 = unix.AF_INET
	ProtoIPv6 = unix.AF_INET6
)
