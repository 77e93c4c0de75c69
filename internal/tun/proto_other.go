//go:build !unix

package tun

// Protocol families used to tag packets written to the device.
const (
	ProtoIPv4 = 2
	ProtoIPv6 = 23
)
