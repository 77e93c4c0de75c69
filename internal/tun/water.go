package tun

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/songgao/water"
)

// WaterDevice is a kernel TUN device. On darwin the driver adds and strips
// the utun protocol header itself.
type WaterDevice struct {
	ifce   *water.Interface
	logger *slog.Logger

	// mu serializes interface programming. Close does not take it, so a
	// hung Configure can't hold the device open.
	mu      sync.Mutex
	applied *Settings
	closed  atomic.Bool
}

var _ Device = (*WaterDevice)(nil)

// Open creates a TUN interface.
func Open(logger *slog.Logger) (*WaterDevice, error) {
	ifce, err := water.New(water.Config{DeviceType: water.TUN})
	if err != nil {
		return nil, fmt.Errorf("create TUN device: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("TUN device created", "component", "tun", "name", ifce.Name())
	return &WaterDevice{ifce: ifce, logger: logger.With("component", "tun")}, nil
}

// Opener returns an OpenFunc for Open.
func Opener(logger *slog.Logger) OpenFunc {
	return func() (Device, error) {
		return Open(logger)
	}
}

func (d *WaterDevice) Name() string {
	return d.ifce.Name()
}

func (d *WaterDevice) ReadBatch(bufs [][]byte, sizes []int) (int, error) {
	if len(bufs) == 0 || len(sizes) == 0 {
		return 0, nil
	}
	n, err := d.ifce.Read(bufs[0])
	if err != nil {
		return 0, err
	}
	sizes[0] = n
	return 1, nil
}

func (d *WaterDevice) WritePacket(packet []byte, proto int) error {
	if proto != ProtoIPv6 && proto != ProtoIPv4 {
		return fmt.Errorf("%w: %d", ErrUnsupportedProto, proto)
	}
	_, err := d.ifce.Write(packet)
	return err
}

func (d *WaterDevice) Configure(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed.Load() {
		return ErrClosed
	}
	if err := applySettings(d.Name(), s); err != nil {
		return err
	}
	d.applied = &s
	d.logger.Info("interface configured", "name", d.Name(), "addresses", s.Addresses, "mtu", s.MTU)
	return nil
}

func (d *WaterDevice) ClearSettings() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed.Load() {
		return ErrClosed
	}
	err := clearSettings(d.Name(), d.applied)
	d.applied = nil
	return err
}

func (d *WaterDevice) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.ifce.Close()
}
