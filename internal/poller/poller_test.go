package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/net2share/meshtun/internal/engine"
	"github.com/net2share/meshtun/internal/ipc"
	"github.com/net2share/meshtun/internal/tunnel"
)

type fakeQuerier struct {
	mu         sync.Mutex
	state      string
	statusErr  error
	summaryErr error
	legacyErr  error
	summary    tunnel.Summary
	calls      map[string]int
}

func newFakeQuerier(state string) *fakeQuerier {
	return &fakeQuerier{
		state: state,
		summary: tunnel.Summary{
			Address:   "200::1",
			Subnet:    "300::/64",
			PublicKey: "ab",
			Enabled:   true,
			Peers:     []engine.PeerStatus{{URI: "tcp://a:1", Up: true}},
		},
		calls: make(map[string]int),
	}
}

func (f *fakeQuerier) count(cmd string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[cmd]
}

func (f *fakeQuerier) set(fn func(*fakeQuerier)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

func (f *fakeQuerier) Status(context.Context) (*ipc.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ipc.CmdStatus]++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &ipc.StatusResult{State: f.state}, nil
}

func (f *fakeQuerier) Summary(context.Context) (*tunnel.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ipc.CmdSummary]++
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	s := f.summary
	return &s, nil
}

func (f *fakeQuerier) Address(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ipc.CmdAddress]++
	return "200::2", f.legacyErr
}

func (f *fakeQuerier) Subnet(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ipc.CmdSubnet]++
	return "300:2::/64", f.legacyErr
}

func (f *fakeQuerier) Peers(context.Context) ([]engine.PeerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ipc.CmdPeers]++
	return []engine.PeerStatus{{URI: "tls://z:1"}, {URI: "tcp://b:1"}}, f.legacyErr
}

func TestConnectionFromState(t *testing.T) {
	tests := []struct {
		state string
		want  Connection
	}{
		{"idle", Disconnected},
		{"starting", Connecting},
		{"running", Connected},
		{"stopping", Disconnecting},
		{"bogus", Disconnected},
	}
	for _, tt := range tests {
		if got := ConnectionFromState(tt.state); got != tt.want {
			t.Errorf("ConnectionFromState(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestRefreshConnected(t *testing.T) {
	q := newFakeQuerier("running")
	p := New(q, nil)

	var updates []Status
	p.Bus().Subscribe(EventStatusUpdated, func(e Event) {
		updates = append(updates, e.Payload.(Status))
	})

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	st := p.Status()
	if !st.Valid || st.Connection != Connected || st.Address != "200::1" || st.PublicKey != "ab" {
		t.Fatalf("status = %+v", st)
	}
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if q.count(ipc.CmdAddress) != 0 {
		t.Fatal("legacy query issued although summary answered")
	}
}

func TestRefreshNotConnectedSkipsQueries(t *testing.T) {
	q := newFakeQuerier("idle")
	p := New(q, nil)
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if q.count(ipc.CmdSummary) != 0 {
		t.Fatal("summary requested while not connected")
	}

	q.set(func(f *fakeQuerier) { f.statusErr = ipc.ErrUnavailable })
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("unavailable should read as disconnected, got %v", err)
	}
	if p.Status().Connection != Disconnected {
		t.Fatal("expected disconnected")
	}
}

func TestLegacyFallback(t *testing.T) {
	q := newFakeQuerier("running")
	q.summaryErr = ipc.ErrNoResponse
	p := New(q, nil)

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	st := p.Status()
	if st.Address != "200::2" || st.Subnet != "300:2::/64" {
		t.Fatalf("status = %+v", st)
	}
	if len(st.Peers) != 2 || st.Peers[0].URI != "tcp://b:1" {
		t.Fatalf("legacy peers not sorted: %+v", st.Peers)
	}
}

func TestCacheRetainedOnTimeout(t *testing.T) {
	q := newFakeQuerier("running")
	p := New(q, nil)
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	q.set(func(f *fakeQuerier) { f.summaryErr = ipc.ErrTimeout })
	if err := p.Refresh(context.Background()); err != ipc.ErrTimeout {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if st := p.Status(); !st.Valid || st.Address != "200::1" {
		t.Fatalf("cache lost on timeout: %+v", st)
	}

	q.set(func(f *fakeQuerier) {
		f.summaryErr = ipc.ErrNoResponse
		f.legacyErr = ipc.ErrNoResponse
	})
	p.Refresh(context.Background())
	if st := p.Status(); !st.Valid || st.Address != "200::1" {
		t.Fatalf("cache lost on no response: %+v", st)
	}

	q.set(func(f *fakeQuerier) { f.statusErr = ipc.ErrTimeout })
	p.Refresh(context.Background())
	if st := p.Status(); !st.Valid || st.Connection != Connected {
		t.Fatalf("cache lost on status timeout: %+v", st)
	}
}

func TestCacheClearedOnDisconnect(t *testing.T) {
	q := newFakeQuerier("running")
	p := New(q, nil)

	var changes []ConnectionPayload
	cleared := 0
	p.Bus().Subscribe(EventConnectionChanged, func(e Event) {
		changes = append(changes, e.Payload.(ConnectionPayload))
	})
	p.Bus().Subscribe(EventStatusCleared, func(Event) { cleared++ })

	p.Refresh(context.Background())
	q.set(func(f *fakeQuerier) { f.state = "stopping" })
	p.Refresh(context.Background())
	if !p.Status().Valid {
		t.Fatal("cache should survive disconnecting")
	}
	q.set(func(f *fakeQuerier) { f.state = "idle" })
	p.Refresh(context.Background())

	st := p.Status()
	if st.Valid || st.Address != "" || len(st.Peers) != 0 {
		t.Fatalf("cache not cleared: %+v", st)
	}
	if cleared != 1 {
		t.Fatalf("cleared events = %d, want 1", cleared)
	}
	want := []Connection{Connected, Disconnecting, Disconnected}
	if len(changes) != len(want) {
		t.Fatalf("changes = %+v", changes)
	}
	for i, c := range want {
		if changes[i].New != c {
			t.Fatalf("change %d = %v, want %v", i, changes[i].New, c)
		}
	}
}

func TestSuspendResume(t *testing.T) {
	q := newFakeQuerier("running")
	p := New(q, nil, WithInterval(20*time.Millisecond))
	p.Suspend()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	if n := q.count(ipc.CmdStatus); n != 0 {
		t.Fatalf("suspended poller issued %d requests", n)
	}

	p.Resume()
	deadline := time.Now().Add(time.Second)
	for q.count(ipc.CmdSummary) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("resume did not refresh")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Periodic refreshes continue after resume.
	before := q.count(ipc.CmdSummary)
	time.Sleep(100 * time.Millisecond)
	if q.count(ipc.CmdSummary) <= before {
		t.Fatal("no periodic refresh after resume")
	}

	cancel()
	<-done
}

func TestStatusReturnsCopy(t *testing.T) {
	q := newFakeQuerier("running")
	p := New(q, nil)
	p.Refresh(context.Background())

	st := p.Status()
	st.Peers[0].URI = "changed"
	if p.Status().Peers[0].URI != "tcp://a:1" {
		t.Fatal("Status exposed internal peers slice")
	}
}
