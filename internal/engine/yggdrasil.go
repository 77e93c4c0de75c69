package engine

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"

	mtconfig "github.com/net2share/meshtun/internal/config"
	"github.com/yggdrasil-network/yggdrasil-go/src/address"
	ycfg "github.com/yggdrasil-network/yggdrasil-go/src/config"
	ycore "github.com/yggdrasil-network/yggdrasil-go/src/core"
	"github.com/yggdrasil-network/yggdrasil-go/src/ipv6rwc"
	"github.com/yggdrasil-network/yggdrasil-go/src/version"
)

// Yggdrasil runs an in-process Yggdrasil node.
type Yggdrasil struct {
	logger *slog.Logger
}

var _ Engine = (*Yggdrasil)(nil)

// NewYggdrasil creates an engine that logs through logger.
func NewYggdrasil(logger *slog.Logger) *Yggdrasil {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Yggdrasil{logger: logger}
}

// Version returns the linked Yggdrasil build version.
func (y *Yggdrasil) Version() string {
	return version.BuildVersion()
}

// GenerateConfig returns a fresh node configuration. The hex public key is
// added alongside the private key so the document identifies its node
// without the engine.
func (y *Yggdrasil) GenerateConfig(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := ycfg.GenerateConfig()
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal generated config: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal generated config: %w", err)
	}
	pub := ed25519.PrivateKey(cfg.PrivateKey).Public().(ed25519.PublicKey)
	doc["PublicKey"] = hex.EncodeToString(pub)

	return json.Marshal(doc)
}

// Start decodes config and brings up a node with its configured peers.
func (y *Yggdrasil) Start(ctx context.Context, config []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := ycfg.GenerateConfig()
	if err := json.Unmarshal(config, cfg); err != nil {
		return nil, fmt.Errorf("decode node config: %w", err)
	}
	if len(cfg.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key length=%d, want %d", len(cfg.PrivateKey), ed25519.PrivateKeySize)
	}
	if err := cfg.GenerateSelfSignedCertificate(); err != nil {
		return nil, fmt.Errorf("make certificate: %w", err)
	}

	var opts []ycore.SetupOption
	if cfg.NodeInfo != nil {
		opts = append(opts, ycore.NodeInfo(cfg.NodeInfo))
	}
	if cfg.NodeInfoPrivacy {
		opts = append(opts, ycore.NodeInfoPrivacy(true))
	}
	for _, la := range cfg.Listen {
		if la = strings.TrimSpace(la); la != "" {
			opts = append(opts, ycore.ListenAddress(la))
		}
	}
	for _, hexKey := range cfg.AllowedPublicKeys {
		b, err := hex.DecodeString(strings.TrimSpace(hexKey))
		if err == nil && len(b) == ed25519.PublicKeySize {
			opts = append(opts, ycore.AllowedPublicKey(ed25519.PublicKey(b)))
		}
	}

	peers := make([]*url.URL, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		p = strings.TrimSpace(p)
		if err := mtconfig.ValidatePeerURI(p); err != nil {
			return nil, err
		}
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid peer URI %q: %w", p, err)
		}
		peers = append(peers, u)
	}

	core, err := ycore.New(cfg.Certificate, newSlogLogger(y.logger), opts...)
	if err != nil {
		return nil, err
	}

	for _, u := range peers {
		if err := core.AddPeer(u, ""); err != nil {
			core.Stop()
			return nil, fmt.Errorf("add peer %s: %w", u, err)
		}
	}

	if err := ctx.Err(); err != nil {
		core.Stop()
		return nil, err
	}

	return &yggHandle{core: core, rwc: ipv6rwc.NewReadWriteCloser(core)}, nil
}

type yggHandle struct {
	core *ycore.Core
	rwc  *ipv6rwc.ReadWriteCloser
	once sync.Once
}

func (h *yggHandle) Send(packet []byte) error {
	_, err := h.rwc.Write(packet)
	return err
}

func (h *yggHandle) Receive(buf []byte) (int, error) {
	return h.rwc.Read(buf)
}

func (h *yggHandle) Address() string {
	return h.core.Address().String()
}

func (h *yggHandle) Subnet() string {
	subnet := h.core.Subnet()
	return subnet.String()
}

func (h *yggHandle) PublicKey() string {
	return hex.EncodeToString(h.core.PublicKey())
}

func (h *yggHandle) MTU() int {
	return int(h.rwc.MTU())
}

func (h *yggHandle) Peers() []PeerStatus {
	infos := h.core.GetPeers()
	peers := make([]PeerStatus, 0, len(infos))
	for _, p := range infos {
		ps := PeerStatus{
			URI:         p.URI,
			Up:          p.Up,
			Inbound:     p.Inbound,
			Priority:    p.Priority,
			RXBytes:     p.RXBytes,
			TXBytes:     p.TXBytes,
			UptimeNanos: p.Uptime.Nanoseconds(),
		}
		if len(p.Key) == ed25519.PublicKeySize {
			ps.PublicKey = hex.EncodeToString(p.Key)
			ps.Address = net.IP(address.AddrForKey(p.Key)[:]).String()
		}
		peers = append(peers, ps)
	}
	return peers
}

func (h *yggHandle) Stop() error {
	h.once.Do(func() {
		h.rwc.Close()
		h.core.Stop()
	})
	return nil
}
