package tunnel

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/net2share/meshtun/internal/engine"
	"github.com/net2share/meshtun/internal/tun"
)

// errorBackoff keeps a persistently failing read from spinning.
const errorBackoff = 10 * time.Millisecond

// Stats counts packets moved by the pump.
type Stats struct {
	packetsOut atomic.Uint64
	packetsIn  atomic.Uint64
	bytesOut   atomic.Uint64
	bytesIn    atomic.Uint64
	errors     atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats. Out is interface to mesh,
// In is mesh to interface.
type StatsSnapshot struct {
	PacketsOut uint64 `json:"packetsOut"`
	PacketsIn  uint64 `json:"packetsIn"`
	BytesOut   uint64 `json:"bytesOut"`
	BytesIn    uint64 `json:"bytesIn"`
	Errors     uint64 `json:"errors"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		PacketsOut: s.packetsOut.Load(),
		PacketsIn:  s.packetsIn.Load(),
		BytesOut:   s.bytesOut.Load(),
		BytesIn:    s.bytesIn.Load(),
		Errors:     s.errors.Load(),
	}
}

// pump moves packets both ways. Each direction owns its buffers, so the two
// loops share nothing but the counters.
type pump struct {
	dev       tun.Device
	handle    engine.Handle
	mtu       int
	batchSize int
	logger    *slog.Logger
	stats     *Stats
}

// fromInterface reads batches from the interface and hands each packet to the
// engine. Per-packet failures are logged and skipped.
func (p *pump) fromInterface(ctx context.Context) error {
	bufs := make([][]byte, p.batchSize)
	for i := range bufs {
		bufs[i] = make([]byte, p.mtu)
	}
	sizes := make([]int, p.batchSize)

	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := p.dev.ReadBatch(bufs, sizes)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.stats.errors.Add(1)
			p.logger.Debug("interface read failed", "err", err)
			p.wait(ctx)
			continue
		}
		for i := 0; i < n; i++ {
			if sizes[i] == 0 {
				continue
			}
			if err := p.handle.Send(bufs[i][:sizes[i]]); err != nil {
				p.stats.errors.Add(1)
				p.logger.Debug("engine send failed", "err", err)
				continue
			}
			p.stats.packetsOut.Add(1)
			p.stats.bytesOut.Add(uint64(sizes[i]))
		}
	}
}

// toInterface receives packets from the engine and writes them to the
// interface tagged as IPv6.
func (p *pump) toInterface(ctx context.Context) error {
	buf := make([]byte, p.mtu)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := p.handle.Receive(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.stats.errors.Add(1)
			p.logger.Debug("engine receive failed", "err", err)
			p.wait(ctx)
			continue
		}
		if n == 0 {
			continue
		}
		if err := p.dev.WritePacket(buf[:n], tun.ProtoIPv6); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.stats.errors.Add(1)
			p.logger.Debug("interface write failed", "err", err)
			continue
		}
		p.stats.packetsIn.Add(1)
		p.stats.bytesIn.Add(uint64(n))
	}
}

func (p *pump) wait(ctx context.Context) {
	t := time.NewTimer(errorBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
