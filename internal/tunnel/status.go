package tunnel

import (
	"sort"

	"github.com/net2share/meshtun/internal/engine"
)

// Summary is everything a controller displays about a running tunnel.
type Summary struct {
	Address   string              `json:"address"`
	Subnet    string              `json:"subnet"`
	PublicKey string              `json:"publicKey"`
	Enabled   bool                `json:"enabled"`
	Peers     []engine.PeerStatus `json:"peers"`
}

// SortPeers orders peers by URI.
func SortPeers(peers []engine.PeerStatus) {
	sort.SliceStable(peers, func(i, j int) bool {
		return peers[i].URI < peers[j].URI
	})
}

// Address returns the node address, or "" when not running.
func (t *Tunnel) Address() string {
	if h := t.running(); h != nil {
		return h.Address()
	}
	return ""
}

// Subnet returns the routed node subnet, or "" when not running.
func (t *Tunnel) Subnet() string {
	if h := t.running(); h != nil {
		return h.Subnet()
	}
	return ""
}

// PublicKey returns the node public key, or "" when not running.
func (t *Tunnel) PublicKey() string {
	if h := t.running(); h != nil {
		return h.PublicKey()
	}
	return ""
}

// Peers returns the engine's peers sorted by URI. It is empty, never nil,
// when not running.
func (t *Tunnel) Peers() []engine.PeerStatus {
	h := t.running()
	if h == nil {
		return []engine.PeerStatus{}
	}
	peers := h.Peers()
	if peers == nil {
		peers = []engine.PeerStatus{}
	}
	SortPeers(peers)
	return peers
}

// Summary collects the full status in one call.
func (t *Tunnel) Summary() Summary {
	h := t.running()
	if h == nil {
		return Summary{Peers: []engine.PeerStatus{}}
	}
	peers := h.Peers()
	if peers == nil {
		peers = []engine.PeerStatus{}
	}
	SortPeers(peers)
	return Summary{
		Address:   h.Address(),
		Subnet:    h.Subnet(),
		PublicKey: h.PublicKey(),
		Enabled:   true,
		Peers:     peers,
	}
}
