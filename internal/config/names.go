package config

import (
	"math/rand/v2"
	"os"
	"strings"
)

var adjectives = []string{
	"swift", "quick", "silent", "hidden", "shadow",
	"bright", "dark", "rapid", "fast", "eager",
	"quiet", "brave", "bold", "calm", "cool",
	"deep", "wild", "free", "pure", "sharp",
}

var nouns = []string{
	"node", "relay", "link", "bridge", "point",
	"eagle", "falcon", "hawk", "raven", "wolf",
	"river", "ocean", "cloud", "star", "moon",
}

// GenerateName generates a random adjective-noun name.
func GenerateName() string {
	adj := adjectives[rand.IntN(len(adjectives))]
	noun := nouns[rand.IntN(len(nouns))]
	return adj + "-" + noun
}

// DefaultNodeName returns the name advertised in NodeInfo for a new node:
// the short host name, or a generated name when the host has none.
func DefaultNodeName() string {
	host, err := os.Hostname()
	if err != nil {
		return GenerateName()
	}
	host, _, _ = strings.Cut(host, ".")
	host = strings.TrimSpace(host)
	if host == "" || host == "localhost" {
		return GenerateName()
	}
	return host
}

// NodeName returns the advertised node name, if any.
func (s *Store) NodeName() string {
	v, ok := s.GetIn(KeyNodeInfo, "name")
	if !ok {
		return ""
	}
	name, _ := v.AsString()
	return name
}
