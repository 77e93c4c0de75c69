// Package engine is the boundary to the mesh routing engine. The tunnel only
// ever talks to the engine through the interfaces declared here.
package engine

import (
	"context"
	"errors"
)

// ErrStopped is returned by Send and Receive once the handle is stopped.
var ErrStopped = errors.New("engine stopped")

// Engine starts mesh nodes and produces fresh identities.
type Engine interface {
	// Start brings up a node from a serialized configuration document.
	Start(ctx context.Context, config []byte) (Handle, error)
	// GenerateConfig returns a serialized document with a new identity.
	GenerateConfig(ctx context.Context) ([]byte, error)
	// Version returns the engine build version.
	Version() string
}

// Handle is a running node.
type Handle interface {
	// Send hands one IPv6 packet to the mesh.
	Send(packet []byte) error
	// Receive blocks until a packet for this node arrives and copies it into
	// buf.
	Receive(buf []byte) (int, error)

	Address() string
	Subnet() string
	PublicKey() string
	MTU() int
	Peers() []PeerStatus

	// Stop shuts the node down. It is safe to call more than once.
	Stop() error
}

// PeerStatus is one peering as reported by the engine. Fields other than URI
// and Up are optional and left zero when the engine does not report them.
type PeerStatus struct {
	URI         string `json:"uri"`
	Up          bool   `json:"up"`
	Inbound     bool   `json:"inbound,omitempty"`
	Address     string `json:"address,omitempty"`
	PublicKey   string `json:"publicKey,omitempty"`
	Priority    uint8  `json:"priority"`
	Cost        uint64 `json:"cost,omitempty"`
	RXBytes     uint64 `json:"rxBytes,omitempty"`
	TXBytes     uint64 `json:"txBytes,omitempty"`
	UptimeNanos int64  `json:"uptimeNanos,omitempty"`
}
