package tunnel

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/engine"
	"github.com/net2share/meshtun/internal/tun"
)

const validConfig = `{"PrivateKey":"k","PublicKey":"p","Peers":["tcp://a.example:1"]}`

type fakeHandle struct {
	mtu      int
	peers    []engine.PeerStatus
	inbound  chan []byte
	sent     chan []byte
	stopped  chan struct{}
	stopOnce sync.Once
	stops    atomic.Int32
	recvLen  atomic.Int64
	failSend atomic.Bool
	failRecv atomic.Bool
}

func newFakeHandle(mtu int) *fakeHandle {
	return &fakeHandle{
		mtu:     mtu,
		inbound: make(chan []byte, 16),
		sent:    make(chan []byte, 16),
		stopped: make(chan struct{}),
	}
}

func (h *fakeHandle) Send(p []byte) error {
	if h.failSend.CompareAndSwap(true, false) {
		return errors.New("send failed")
	}
	h.sent <- append([]byte(nil), p...)
	return nil
}

func (h *fakeHandle) Receive(buf []byte) (int, error) {
	h.recvLen.Store(int64(len(buf)))
	if h.failRecv.CompareAndSwap(true, false) {
		return 0, errors.New("receive failed")
	}
	select {
	case p := <-h.inbound:
		return copy(buf, p), nil
	case <-h.stopped:
		return 0, engine.ErrStopped
	}
}

func (h *fakeHandle) Address() string             { return "200::1" }
func (h *fakeHandle) Subnet() string              { return "300::/64" }
func (h *fakeHandle) PublicKey() string           { return "pk" }
func (h *fakeHandle) MTU() int                    { return h.mtu }
func (h *fakeHandle) Peers() []engine.PeerStatus { return append([]engine.PeerStatus(nil), h.peers...) }

func (h *fakeHandle) Stop() error {
	h.stops.Add(1)
	h.stopOnce.Do(func() { close(h.stopped) })
	return nil
}

type fakeEngine struct {
	mu       sync.Mutex
	mtu      int
	peers    []engine.PeerStatus
	startErr error
	failRecv bool
	release  chan struct{}
	handles  []*fakeHandle
	starts   int
}

func (e *fakeEngine) Start(ctx context.Context, cfg []byte) (engine.Handle, error) {
	e.mu.Lock()
	e.starts++
	release := e.release
	e.mu.Unlock()

	if release != nil {
		<-release
	}
	if e.startErr != nil {
		return nil, e.startErr
	}
	h := newFakeHandle(e.mtu)
	h.peers = e.peers
	h.failRecv.Store(e.failRecv)
	e.mu.Lock()
	e.handles = append(e.handles, h)
	e.mu.Unlock()
	return h, nil
}

func (e *fakeEngine) GenerateConfig(context.Context) ([]byte, error) { return []byte(validConfig), nil }
func (e *fakeEngine) Version() string                                { return "test" }

func (e *fakeEngine) lastHandle() *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.handles) == 0 {
		return nil
	}
	return e.handles[len(e.handles)-1]
}

type written struct {
	pkt   []byte
	proto int
}

type fakeDevice struct {
	toRead       chan []byte
	written      chan written
	closed       chan struct{}
	closeOnce    sync.Once
	configureErr error
	settings     atomic.Pointer[tun.Settings]
	clears       atomic.Int32
	readLen      atomic.Int64
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		toRead:  make(chan []byte, 16),
		written: make(chan written, 16),
		closed:  make(chan struct{}),
	}
}

func (d *fakeDevice) Name() string { return "faketun0" }

func (d *fakeDevice) ReadBatch(bufs [][]byte, sizes []int) (int, error) {
	d.readLen.Store(int64(len(bufs[0])))
	select {
	case p := <-d.toRead:
		sizes[0] = copy(bufs[0], p)
		return 1, nil
	case <-d.closed:
		return 0, tun.ErrClosed
	}
}

func (d *fakeDevice) WritePacket(p []byte, proto int) error {
	d.written <- written{append([]byte(nil), p...), proto}
	return nil
}

func (d *fakeDevice) Configure(s tun.Settings) error {
	if d.configureErr != nil {
		return d.configureErr
	}
	d.settings.Store(&s)
	return nil
}

func (d *fakeDevice) ClearSettings() error {
	d.clears.Add(1)
	return nil
}

func (d *fakeDevice) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

func (d *fakeDevice) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

// batchDevice hands out queued packets several at a time.
type batchDevice struct {
	*fakeDevice
	mu      sync.Mutex
	pending [][]byte
	reads   atomic.Int32
}

func (d *batchDevice) ReadBatch(bufs [][]byte, sizes []int) (int, error) {
	d.mu.Lock()
	if len(d.pending) > 0 {
		n := min(len(d.pending), len(bufs), 7)
		for i := 0; i < n; i++ {
			sizes[i] = copy(bufs[i], d.pending[i])
		}
		d.pending = d.pending[n:]
		d.mu.Unlock()
		d.reads.Add(1)
		return n, nil
	}
	d.mu.Unlock()
	<-d.closed
	return 0, tun.ErrClosed
}

func newTestTunnel(eng *fakeEngine, dev *fakeDevice, opts ...Option) *Tunnel {
	return New(eng, func() (tun.Device, error) { return dev, nil }, opts...)
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
	}
	var zero T
	return zero
}

func TestStartStopMovesPackets(t *testing.T) {
	eng := &fakeEngine{mtu: 1500}
	dev := newFakeDevice()
	tn := newTestTunnel(eng, dev)

	if got := tn.State(); got != Idle {
		t.Fatalf("initial state %s", got)
	}
	if err := tn.Start(context.Background(), []byte(validConfig)); err != nil {
		t.Fatal(err)
	}
	if got := tn.State(); got != Running {
		t.Fatalf("state after Start = %s", got)
	}

	s := dev.settings.Load()
	if s == nil || s.Addresses[0] != "200::1" || s.PrefixLength != 7 || s.IncludedRoutes[0] != "200::/7" || s.MTU != 1500 {
		t.Errorf("interface settings = %+v", s)
	}
	if dev.clears.Load() == 0 {
		t.Error("prior settings not cleared")
	}

	h := eng.lastHandle()

	dev.toRead <- []byte{0x60, 1, 2, 3}
	if got := recv(t, h.sent); len(got) != 4 || got[3] != 3 {
		t.Errorf("engine got %v", got)
	}

	h.inbound <- []byte{0x60, 9, 9}
	w := recv(t, dev.written)
	if w.proto != tun.ProtoIPv6 || len(w.pkt) != 3 {
		t.Errorf("interface got %+v", w)
	}

	tn.Stop("test")
	if got := tn.State(); got != Idle {
		t.Errorf("state after Stop = %s", got)
	}
	if !dev.isClosed() {
		t.Error("device not closed")
	}
	if h.stops.Load() == 0 {
		t.Error("engine not stopped")
	}

	snap := tn.Stats()
	if snap.PacketsOut != 1 || snap.PacketsIn != 1 || snap.BytesOut != 4 || snap.BytesIn != 3 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestBatchedReadsSendEveryPacket(t *testing.T) {
	const n = 50
	var packets [][]byte
	for i := 0; i < n; i++ {
		p := make([]byte, 1+(i*37)%300)
		for j := range p {
			p[j] = byte(i + j)
		}
		packets = append(packets, p)
	}

	eng := &fakeEngine{mtu: 1500}
	dev := &batchDevice{fakeDevice: newFakeDevice(), pending: append([][]byte(nil), packets...)}
	tn := New(eng, func() (tun.Device, error) { return dev, nil }, WithBatchSize(8))
	if err := tn.Start(context.Background(), []byte(validConfig)); err != nil {
		t.Fatal(err)
	}

	h := eng.lastHandle()
	for i, want := range packets {
		got := recv(t, h.sent)
		if !bytes.Equal(got, want) {
			t.Fatalf("packet %d = %d bytes, want %d bytes %v", i, len(got), len(want), want[:1])
		}
	}
	tn.Stop("test")

	if extra := len(h.sent); extra != 0 {
		t.Errorf("%d sends beyond the %d packets read", extra, n)
	}
	if got := tn.Stats().PacketsOut; got != n {
		t.Errorf("PacketsOut = %d, want %d", got, n)
	}
	if reads := dev.reads.Load(); reads >= n {
		t.Errorf("%d reads for %d packets, batching not exercised", reads, n)
	}
}

func TestReceiveErrorDoesNotStopPump(t *testing.T) {
	eng := &fakeEngine{mtu: 1500, failRecv: true}
	dev := newFakeDevice()
	tn := newTestTunnel(eng, dev)
	if err := tn.Start(context.Background(), []byte(validConfig)); err != nil {
		t.Fatal(err)
	}
	defer tn.Stop("test")

	h := eng.lastHandle()
	h.inbound <- []byte{0x60, 7}
	w := recv(t, dev.written)
	if len(w.pkt) != 2 || w.pkt[1] != 7 {
		t.Errorf("interface got %+v", w)
	}
	if tn.Stats().Errors == 0 {
		t.Error("receive failure not counted")
	}
	if tn.State() != Running {
		t.Errorf("state = %s", tn.State())
	}
}

func TestBuffersSizedToMTU(t *testing.T) {
	eng := &fakeEngine{mtu: 1280}
	dev := newFakeDevice()
	tn := newTestTunnel(eng, dev)
	if err := tn.Start(context.Background(), []byte(validConfig)); err != nil {
		t.Fatal(err)
	}
	defer tn.Stop("test")

	h := eng.lastHandle()
	deadline := time.Now().Add(2 * time.Second)
	for dev.readLen.Load() == 0 || h.recvLen.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("pump loops never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := dev.readLen.Load(); got != 1280 {
		t.Errorf("read buffer = %d, want 1280", got)
	}
	if got := h.recvLen.Load(); got != 1280 {
		t.Errorf("receive buffer = %d, want 1280", got)
	}
}

func TestSendErrorDoesNotStopPump(t *testing.T) {
	eng := &fakeEngine{mtu: 1500}
	dev := newFakeDevice()
	tn := newTestTunnel(eng, dev)
	if err := tn.Start(context.Background(), []byte(validConfig)); err != nil {
		t.Fatal(err)
	}
	defer tn.Stop("test")

	h := eng.lastHandle()
	h.failSend.Store(true)
	dev.toRead <- []byte{1}
	dev.toRead <- []byte{2}
	if got := recv(t, h.sent); got[0] != 2 {
		t.Errorf("expected second packet, got %v", got)
	}
	if tn.State() != Running {
		t.Errorf("state = %s", tn.State())
	}
}

func TestStartWhileRunning(t *testing.T) {
	eng := &fakeEngine{mtu: 1500}
	tn := newTestTunnel(eng, newFakeDevice())
	if err := tn.Start(context.Background(), []byte(validConfig)); err != nil {
		t.Fatal(err)
	}
	defer tn.Stop("test")

	err := tn.Start(context.Background(), []byte(validConfig))
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
	if eng.starts != 1 {
		t.Errorf("engine started %d times", eng.starts)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	eng := &fakeEngine{mtu: 1500}
	tn := newTestTunnel(eng, newFakeDevice())

	tn.Stop("idle")
	if tn.State() != Idle {
		t.Fatalf("state = %s", tn.State())
	}

	if err := tn.Start(context.Background(), []byte(validConfig)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tn.Stop("concurrent")
		}()
	}
	wg.Wait()

	if tn.State() != Idle {
		t.Errorf("state = %s", tn.State())
	}
	if n := eng.lastHandle().stops.Load(); n != 1 {
		t.Errorf("engine stopped %d times, want 1", n)
	}
}

func TestStartConfigInvalid(t *testing.T) {
	cases := []struct {
		name string
		cfg  []byte
		is   error
	}{
		{"absent", nil, ErrConfigInvalid},
		{"garbage", []byte("{nope"), config.ErrDecode},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			eng := &fakeEngine{mtu: 1500}
			tn := newTestTunnel(eng, newFakeDevice())
			err := tn.Start(context.Background(), c.cfg)
			if !errors.Is(err, ErrConfigInvalid) || !errors.Is(err, c.is) {
				t.Errorf("Start = %v", err)
			}
			if tn.State() != Idle {
				t.Errorf("state = %s", tn.State())
			}
			if eng.starts != 0 {
				t.Error("engine started with invalid config")
			}
		})
	}
}

func TestStartBadPeerIsEngineError(t *testing.T) {
	for _, peer := range []string{"tcp://no-port", "gopher://x:1", "tcp://%zz"} {
		t.Run(peer, func(t *testing.T) {
			eng := &fakeEngine{mtu: 1500}
			opened := false
			tn := New(eng, func() (tun.Device, error) {
				opened = true
				return newFakeDevice(), nil
			})

			cfg := []byte(`{"PrivateKey":"k","Peers":["` + peer + `"]}`)
			err := tn.Start(context.Background(), cfg)
			if !errors.Is(err, ErrEngineStart) {
				t.Errorf("Start = %v, want ErrEngineStart", err)
			}
			if errors.Is(err, ErrConfigInvalid) {
				t.Errorf("bad peer reported as invalid configuration: %v", err)
			}
			if tn.State() != Idle {
				t.Errorf("state = %s", tn.State())
			}
			if opened {
				t.Error("interface opened for a config with a bad peer")
			}
		})
	}
}

func TestStartEngineError(t *testing.T) {
	eng := &fakeEngine{mtu: 1500, startErr: errors.New("no key")}
	dev := newFakeDevice()
	tn := newTestTunnel(eng, dev)

	err := tn.Start(context.Background(), []byte(validConfig))
	if !errors.Is(err, ErrEngineStart) {
		t.Errorf("Start = %v, want ErrEngineStart", err)
	}
	if tn.State() != Idle {
		t.Errorf("state = %s", tn.State())
	}
	if !dev.isClosed() {
		t.Error("device left open")
	}
}

func TestStartInterfaceError(t *testing.T) {
	eng := &fakeEngine{mtu: 1500}
	dev := newFakeDevice()
	dev.configureErr = errors.New("permission denied")
	tn := newTestTunnel(eng, dev)

	err := tn.Start(context.Background(), []byte(validConfig))
	if !errors.Is(err, ErrInterfaceConfig) {
		t.Errorf("Start = %v, want ErrInterfaceConfig", err)
	}
	if tn.State() != Idle {
		t.Errorf("state = %s", tn.State())
	}
	if h := eng.lastHandle(); h == nil || h.stops.Load() == 0 {
		t.Error("engine not stopped after interface failure")
	}
	if !dev.isClosed() {
		t.Error("device left open")
	}
}

func TestStartOpenError(t *testing.T) {
	eng := &fakeEngine{mtu: 1500}
	tn := New(eng, func() (tun.Device, error) { return nil, errors.New("no /dev/net/tun") })
	if err := tn.Start(context.Background(), []byte(validConfig)); !errors.Is(err, ErrInterfaceConfig) {
		t.Errorf("Start = %v, want ErrInterfaceConfig", err)
	}
	if tn.State() != Idle {
		t.Errorf("state = %s", tn.State())
	}
}

func TestStartTimeout(t *testing.T) {
	eng := &fakeEngine{mtu: 1500, release: make(chan struct{})}
	dev := newFakeDevice()
	tn := newTestTunnel(eng, dev, WithStartTimeout(50*time.Millisecond))

	err := tn.Start(context.Background(), []byte(validConfig))
	if !errors.Is(err, ErrStartTimeout) {
		t.Fatalf("Start = %v, want ErrStartTimeout", err)
	}
	if tn.State() != Idle {
		t.Errorf("state = %s", tn.State())
	}

	// A handle that shows up late is shut down.
	close(eng.release)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if h := eng.lastHandle(); h != nil && h.stops.Load() > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("late engine handle was not stopped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRestartAfterStop(t *testing.T) {
	eng := &fakeEngine{mtu: 1500}
	opens := 0
	tn := New(eng, func() (tun.Device, error) {
		opens++
		return newFakeDevice(), nil
	})
	for i := 0; i < 3; i++ {
		if err := tn.Start(context.Background(), []byte(validConfig)); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		tn.Stop("cycle")
	}
	if opens != 3 {
		t.Errorf("device opened %d times, want 3", opens)
	}
}

func TestSummary(t *testing.T) {
	eng := &fakeEngine{mtu: 1500, peers: []engine.PeerStatus{
		{URI: "tls://b:2", Up: true},
		{URI: "quic://c:3"},
		{URI: "tcp://a:1", Up: true},
	}}
	tn := newTestTunnel(eng, newFakeDevice())

	idle := tn.Summary()
	if idle.Enabled || idle.Peers == nil || len(idle.Peers) != 0 || idle.Address != "" {
		t.Errorf("idle summary = %+v", idle)
	}

	if err := tn.Start(context.Background(), []byte(validConfig)); err != nil {
		t.Fatal(err)
	}
	defer tn.Stop("test")

	s := tn.Summary()
	if !s.Enabled || s.Address != "200::1" || s.Subnet != "300::/64" || s.PublicKey != "pk" {
		t.Errorf("summary = %+v", s)
	}
	want := []string{"quic://c:3", "tcp://a:1", "tls://b:2"}
	for i, p := range s.Peers {
		if p.URI != want[i] {
			t.Errorf("peer %d = %s, want %s", i, p.URI, want[i])
		}
	}
	if peers := tn.Peers(); peers[0].URI != "quic://c:3" {
		t.Errorf("Peers() not sorted: %v", peers)
	}
}
