//go:build linux

package tun

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

func applySettings(name string, s Settings) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("find link %s: %w", name, err)
	}

	if err := netlink.LinkSetMTU(link, s.MTU); err != nil {
		return fmt.Errorf("set MTU on %s: %w", name, err)
	}

	for _, a := range s.Addresses {
		addr, err := netlink.ParseAddr(fmt.Sprintf("%s/%d", a, s.PrefixLength))
		if err != nil {
			return fmt.Errorf("parse address %s: %w", a, err)
		}
		if err := netlink.AddrReplace(link, addr); err != nil {
			return fmt.Errorf("add address %s to %s: %w", a, name, err)
		}
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("bring up %s: %w", name, err)
	}

	for _, r := range s.IncludedRoutes {
		_, dst, err := net.ParseCIDR(r)
		if err != nil {
			return fmt.Errorf("parse route %s: %w", r, err)
		}
		route := &netlink.Route{LinkIndex: link.Attrs().Index, Dst: dst}
		if err := netlink.RouteReplace(route); err != nil {
			return fmt.Errorf("add route %s via %s: %w", r, name, err)
		}
	}

	return nil
}

// clearSettings removes every global IPv6 address from the link. Routes
// through the link go with them.
func clearSettings(name string, _ *Settings) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("find link %s: %w", name, err)
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V6)
	if err != nil {
		return fmt.Errorf("list addresses on %s: %w", name, err)
	}
	for _, addr := range addrs {
		if addr.IP.IsLinkLocalUnicast() {
			continue
		}
		if err := netlink.AddrDel(link, &addr); err != nil {
			return fmt.Errorf("remove address %s from %s: %w", addr.IP, name, err)
		}
	}
	return nil
}
