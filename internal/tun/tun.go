// Package tun provides the host-side virtual interface the tunnel pumps
// packets through.
package tun

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

const (
	// MeshPrefixLength is the prefix length assigned to the node address.
	MeshPrefixLength = 7
	// MeshRoute covers the whole mesh address space.
	MeshRoute = "200::/7"
	// MinMTU is the smallest MTU IPv6 allows.
	MinMTU = 1280
)

var (
	ErrUnsupported      = errors.New("interface configuration not supported on this platform")
	ErrUnsupportedProto = errors.New("unsupported protocol family")
	ErrClosed           = errors.New("device closed")
)

// Settings describes how the interface is programmed.
type Settings struct {
	Addresses      []string
	PrefixLength   int
	IncludedRoutes []string
	MTU            int
}

// MeshSettings returns the settings for a node with the given address.
func MeshSettings(address string, mtu int) Settings {
	return Settings{
		Addresses:      []string{address},
		PrefixLength:   MeshPrefixLength,
		IncludedRoutes: []string{MeshRoute},
		MTU:            mtu,
	}
}

// Validate checks that s can be applied to an interface.
func (s Settings) Validate() error {
	if len(s.Addresses) == 0 {
		return fmt.Errorf("no interface address")
	}
	for _, a := range s.Addresses {
		ip, err := netip.ParseAddr(a)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", a, err)
		}
		if !ip.Is6() || ip.Is4In6() {
			return fmt.Errorf("address %q is not IPv6", a)
		}
	}
	if s.PrefixLength < 1 || s.PrefixLength > 128 {
		return fmt.Errorf("invalid prefix length %d", s.PrefixLength)
	}
	for _, r := range s.IncludedRoutes {
		if _, _, err := net.ParseCIDR(r); err != nil {
			return fmt.Errorf("invalid route %q: %w", r, err)
		}
	}
	if s.MTU < MinMTU {
		return fmt.Errorf("MTU %d below minimum %d", s.MTU, MinMTU)
	}
	return nil
}

// Device is a virtual interface.
type Device interface {
	Name() string
	// ReadBatch reads one or more packets into bufs, storing each length in
	// sizes, and returns how many were read.
	ReadBatch(bufs [][]byte, sizes []int) (int, error)
	// WritePacket writes one packet of the given protocol family.
	WritePacket(packet []byte, proto int) error
	Configure(s Settings) error
	ClearSettings() error
	Close() error
}

// OpenFunc opens a new device.
type OpenFunc func() (Device, error)
