// Package tunnel drives the tunnel lifecycle: it starts the mesh engine,
// programs the host interface and pumps packets between the two.
//
// State machine:
//
//	Idle --Start--> Starting --ok--> Running --Stop--> Stopping --> Idle
//	                   |
//	                   +--error--> Idle
//
// There is no failed state. Every error path returns to Idle with the engine
// and device released.
package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/engine"
	"github.com/net2share/meshtun/internal/tun"
	"golang.org/x/sync/errgroup"
)

// DefaultStartTimeout bounds engine start plus interface programming.
const DefaultStartTimeout = 30 * time.Second

// State is the lifecycle state.
type State int32

const (
	Idle State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Option configures a Tunnel.
type Option func(*Tunnel)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tunnel) { t.logger = l }
}

// WithStartTimeout overrides DefaultStartTimeout.
func WithStartTimeout(d time.Duration) Option {
	return func(t *Tunnel) { t.startTimeout = d }
}

// WithBatchSize sets how many packets one interface read may return.
func WithBatchSize(n int) Option {
	return func(t *Tunnel) {
		if n > 0 {
			t.batchSize = n
		}
	}
}

// Tunnel owns one engine node and one interface while running.
type Tunnel struct {
	engine       engine.Engine
	open         tun.OpenFunc
	logger       *slog.Logger
	startTimeout time.Duration
	batchSize    int

	// transition serializes Start and Stop.
	transition sync.Mutex

	mu     sync.RWMutex
	state  State
	handle engine.Handle
	dev    tun.Device
	cancel context.CancelFunc
	group  *errgroup.Group
	stats  *Stats
}

// New creates an idle tunnel. open is called once per Start.
func New(eng engine.Engine, open tun.OpenFunc, opts ...Option) *Tunnel {
	t := &Tunnel{
		engine:       eng,
		open:         open,
		logger:       slog.New(slog.DiscardHandler),
		startTimeout: DefaultStartTimeout,
		batchSize:    16,
		state:        Idle,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "tunnel")
	return t
}

// State returns the current lifecycle state.
func (t *Tunnel) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Tunnel) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Start brings the tunnel up from a serialized configuration document.
// On any error the tunnel is back in Idle with nothing left running.
func (t *Tunnel) Start(ctx context.Context, cfg []byte) error {
	t.transition.Lock()
	defer t.transition.Unlock()

	t.mu.Lock()
	if t.state != Idle {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrAlreadyRunning, state)
	}
	t.state = Starting
	t.mu.Unlock()

	t.logger.Info("starting tunnel")
	if err := t.start(ctx, cfg); err != nil {
		t.setState(Idle)
		t.logger.Error("tunnel start failed", "err", err)
		return err
	}
	return nil
}

type startResult struct {
	handle engine.Handle
	err    error
}

func (t *Tunnel) start(ctx context.Context, cfg []byte) error {
	if len(cfg) == 0 {
		return fmt.Errorf("%w: no configuration", ErrConfigInvalid)
	}
	doc, err := config.Load(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	// Peers the engine could never dial fail the start before the
	// interface is touched.
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrEngineStart, err)
	}
	serialized, err := doc.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	dev, err := t.open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInterfaceConfig, err)
	}
	if err := dev.ClearSettings(); err != nil {
		t.logger.Warn("failed to clear interface settings", "err", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, t.startTimeout)
	defer cancel()

	done := make(chan startResult, 1)
	go func() {
		h, err := t.bringUp(startCtx, dev, serialized)
		done <- startResult{h, err}
	}()

	var handle engine.Handle
	select {
	case r := <-done:
		if r.err != nil {
			dev.Close()
			return r.err
		}
		handle = r.handle
	case <-startCtx.Done():
		dev.Close()
		// The engine may still come up after we give up on it.
		go func() {
			if r := <-done; r.handle != nil {
				r.handle.Stop()
			}
		}()
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w after %s", ErrStartTimeout, t.startTimeout)
	}

	t.launch(dev, handle)
	return nil
}

// bringUp starts the engine and programs the interface from what the engine
// reports. The engine is stopped again if the interface can't be programmed.
func (t *Tunnel) bringUp(ctx context.Context, dev tun.Device, cfg []byte) (engine.Handle, error) {
	h, err := t.engine.Start(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineStart, err)
	}

	settings := tun.MeshSettings(h.Address(), h.MTU())
	if err := dev.Configure(settings); err != nil {
		if stopErr := h.Stop(); stopErr != nil {
			t.logger.Warn("failed to stop engine after interface error", "err", stopErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrInterfaceConfig, err)
	}
	return h, nil
}

func (t *Tunnel) launch(dev tun.Device, h engine.Handle) {
	pumpCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(pumpCtx)
	stats := &Stats{}
	p := &pump{
		dev:       dev,
		handle:    h,
		mtu:       h.MTU(),
		batchSize: t.batchSize,
		logger:    t.logger,
		stats:     stats,
	}
	g.Go(func() error { return p.fromInterface(gctx) })
	g.Go(func() error { return p.toInterface(gctx) })

	t.mu.Lock()
	t.handle = h
	t.dev = dev
	t.cancel = cancel
	t.group = g
	t.stats = stats
	t.state = Running
	t.mu.Unlock()

	t.logger.Info("tunnel running", "address", h.Address(), "subnet", h.Subnet(), "mtu", h.MTU(), "device", dev.Name())
}

// Stop tears the tunnel down and waits for the pump to exit. It does nothing
// unless the tunnel is Running, so it is safe to call repeatedly.
func (t *Tunnel) Stop(reason string) {
	t.transition.Lock()
	defer t.transition.Unlock()

	t.mu.Lock()
	if t.state != Running {
		t.mu.Unlock()
		return
	}
	t.state = Stopping
	cancel, dev, h, g, stats := t.cancel, t.dev, t.handle, t.group, t.stats
	t.mu.Unlock()

	t.logger.Info("stopping tunnel", "reason", reason)

	cancel()
	if err := dev.ClearSettings(); err != nil {
		t.logger.Warn("failed to clear interface settings", "err", err)
	}
	if err := dev.Close(); err != nil {
		t.logger.Warn("failed to close interface", "err", err)
	}
	if err := h.Stop(); err != nil {
		t.logger.Warn("failed to stop engine", "err", err)
	}
	if err := g.Wait(); err != nil {
		t.logger.Warn("packet pump exited with error", "err", err)
	}

	t.mu.Lock()
	t.handle = nil
	t.dev = nil
	t.cancel = nil
	t.group = nil
	t.state = Idle
	t.mu.Unlock()

	snap := stats.Snapshot()
	t.logger.Info("tunnel stopped",
		"packets_out", snap.PacketsOut, "packets_in", snap.PacketsIn,
		"bytes_out", snap.BytesOut, "bytes_in", snap.BytesIn)
}

// Stats returns packet counters for the current or most recent run.
func (t *Tunnel) Stats() StatsSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.stats == nil {
		return StatsSnapshot{}
	}
	return t.stats.Snapshot()
}

func (t *Tunnel) running() engine.Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state != Running {
		return nil
	}
	return t.handle
}
