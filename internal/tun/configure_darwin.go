//go:build darwin

package tun

import (
	"fmt"
	"os/exec"
	"strconv"
)

func run(name string, args ...string) error {
	if out, err := exec.Command(name, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s %v: %w (%s)", name, args, err, out)
	}
	return nil
}

func applySettings(name string, s Settings) error {
	for _, a := range s.Addresses {
		if err := run("ifconfig", name, "inet6", a, "prefixlen", strconv.Itoa(s.PrefixLength), "alias"); err != nil {
			return err
		}
	}
	if err := run("ifconfig", name, "mtu", strconv.Itoa(s.MTU), "up"); err != nil {
		return err
	}
	for _, r := range s.IncludedRoutes {
		if err := run("route", "-q", "-n", "add", "-inet6", r, "-interface", name); err != nil {
			return err
		}
	}
	return nil
}

func clearSettings(name string, applied *Settings) error {
	if applied == nil {
		return nil
	}
	for _, r := range applied.IncludedRoutes {
		// The route may already be gone with the address.
		_ = run("route", "-q", "-n", "delete", "-inet6", r, "-interface", name)
	}
	for _, a := range applied.Addresses {
		if err := run("ifconfig", name, "inet6", a, "-alias"); err != nil {
			return err
		}
	}
	return nil
}
