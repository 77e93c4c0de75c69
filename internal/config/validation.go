package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// peerSchemes are the link types the engine can dial.
var peerSchemes = map[string]bool{
	"tcp":      true,
	"tls":      true,
	"quic":     true,
	"ws":       true,
	"wss":      true,
	"socks":    true,
	"sockstls": true,
	"unix":     true,
}

// ValidatePeerURI checks that uri is something the engine can dial.
func ValidatePeerURI(uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return fmt.Errorf("peer URI is empty")
	}
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid peer URI %q: %w", uri, err)
	}
	if !peerSchemes[u.Scheme] {
		return fmt.Errorf("invalid peer URI %q: unsupported scheme %q", uri, u.Scheme)
	}
	if u.Scheme == "unix" {
		if u.Path == "" {
			return fmt.Errorf("invalid peer URI %q: missing socket path", uri)
		}
		return nil
	}
	if _, port, err := net.SplitHostPort(u.Host); err != nil || port == "" {
		return fmt.Errorf("invalid peer URI %q: host must be host:port", uri)
	}
	return nil
}

// Validate checks the parts of the document the tunnel depends on.
func (s *Store) Validate() error {
	if v, ok := s.Get(KeyPeers); ok {
		items, isSeq := v.AsSequence()
		if !isSeq {
			return fmt.Errorf("%s: must be a list", KeyPeers)
		}
		for i, item := range items {
			uri, ok := item.AsString()
			if !ok {
				return fmt.Errorf("%s[%d]: must be a string", KeyPeers, i)
			}
			if err := ValidatePeerURI(uri); err != nil {
				return fmt.Errorf("%s[%d]: %w", KeyPeers, i, err)
			}
		}
	}

	if v, ok := s.Get(KeyMulticastInterfaces); ok {
		items, _ := v.AsSequence()
		for i, item := range items {
			rv, ok := item.Lookup("Regex")
			regex, isStr := rv.AsString()
			if !ok || !isStr {
				return fmt.Errorf("%s[%d]: Regex is required", KeyMulticastInterfaces, i)
			}
			if _, err := regexp.Compile(regex); err != nil {
				return fmt.Errorf("%s[%d]: invalid Regex: %w", KeyMulticastInterfaces, i, err)
			}
		}
	}

	return nil
}
