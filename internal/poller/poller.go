// Package poller keeps a controller's view of the tunnel process current.
//
// While the tunnel is connected the poller asks for a status summary every
// interval and caches the answer. It never queries a tunnel that is not
// connected. A timeout or a missing answer keeps the last cached status; a
// disconnect clears it.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/net2share/meshtun/internal/engine"
	"github.com/net2share/meshtun/internal/ipc"
	"github.com/net2share/meshtun/internal/tunnel"
)

// DefaultInterval is the refresh period while connected.
const DefaultInterval = 2 * time.Second

// Connection is the tunnel connection status as seen by a controller.
type Connection int

const (
	Disconnected Connection = iota
	Connecting
	Connected
	Disconnecting
)

func (c Connection) String() string {
	switch c {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "disconnected"
	}
}

// ConnectionFromState maps a tunnel lifecycle state name to a connection
// status.
func ConnectionFromState(state string) Connection {
	switch state {
	case tunnel.Starting.String():
		return Connecting
	case tunnel.Running.String():
		return Connected
	case tunnel.Stopping.String():
		return Disconnecting
	default:
		return Disconnected
	}
}

// Status is the cached view of the tunnel. Valid is false until the first
// successful refresh and after a disconnect.
type Status struct {
	Connection Connection
	Valid      bool
	Address    string
	Subnet     string
	PublicKey  string
	Peers      []engine.PeerStatus
	UpdatedAt  time.Time
}

// Querier is the subset of *ipc.Client the poller uses.
type Querier interface {
	Status(ctx context.Context) (*ipc.StatusResult, error)
	Summary(ctx context.Context) (*tunnel.Summary, error)
	Address(ctx context.Context) (string, error)
	Subnet(ctx context.Context) (string, error)
	Peers(ctx context.Context) ([]engine.PeerStatus, error)
}

var _ Querier = (*ipc.Client)(nil)

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// Poller refreshes a Status from a Querier and publishes changes on an
// EventBus.
type Poller struct {
	q        Querier
	bus      *EventBus
	interval time.Duration
	logger   *slog.Logger
	wake     chan struct{}

	mu        sync.Mutex
	status    Status
	suspended bool
}

// New creates a poller. A nil bus gets a private one.
func New(q Querier, bus *EventBus, opts ...Option) *Poller {
	if bus == nil {
		bus = NewEventBus()
	}
	p := &Poller{
		q:        q,
		bus:      bus,
		interval: DefaultInterval,
		logger:   slog.New(slog.DiscardHandler),
		wake:     make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With("component", "poller")
	return p
}

// Bus returns the bus events are published on.
func (p *Poller) Bus() *EventBus { return p.bus }

// Status returns a copy of the cached status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.Peers = append([]engine.PeerStatus(nil), s.Peers...)
	return s
}

// Suspend pauses periodic refreshes, for example while the display is
// hidden.
func (p *Poller) Suspend() {
	p.mu.Lock()
	p.suspended = true
	p.mu.Unlock()
}

// Resume restarts periodic refreshes and triggers one immediately.
func (p *Poller) Resume() {
	p.mu.Lock()
	p.suspended = false
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) isSuspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}

// Run refreshes once and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if !p.isSuspended() {
		p.refreshLogged(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
			p.refreshLogged(ctx)
			ticker.Reset(p.interval)
		case <-ticker.C:
			if !p.isSuspended() {
				p.refreshLogged(ctx)
			}
		}
	}
}

func (p *Poller) refreshLogged(ctx context.Context) {
	if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
		p.logger.Debug("refresh failed", "err", err)
	}
}

// Refresh queries the tunnel process once. Status is queried first; the
// summary is only requested while connected.
func (p *Poller) Refresh(ctx context.Context) error {
	st, err := p.q.Status(ctx)
	switch {
	case err == nil:
		p.setConnection(ConnectionFromState(st.State))
	case errors.Is(err, ipc.ErrUnavailable):
		p.setConnection(Disconnected)
		return nil
	default:
		return err
	}

	if p.connection() != Connected {
		return nil
	}

	next, err := p.fetch(ctx)
	if err != nil {
		return err
	}
	next.Connection = Connected
	next.Valid = true
	next.UpdatedAt = time.Now()

	p.mu.Lock()
	p.status = next
	p.mu.Unlock()

	p.bus.Publish(Event{Type: EventStatusUpdated, Payload: next})
	return nil
}

func (p *Poller) fetch(ctx context.Context) (Status, error) {
	sum, err := p.q.Summary(ctx)
	if err == nil {
		return Status{
			Address:   sum.Address,
			Subnet:    sum.Subnet,
			PublicKey: sum.PublicKey,
			Peers:     sum.Peers,
		}, nil
	}
	if !errors.Is(err, ipc.ErrNoResponse) {
		return Status{}, err
	}

	// Older tunnel processes only answer the individual queries.
	var s Status
	if s.Address, err = p.q.Address(ctx); err != nil {
		return Status{}, err
	}
	if s.Subnet, err = p.q.Subnet(ctx); err != nil {
		return Status{}, err
	}
	if s.Peers, err = p.q.Peers(ctx); err != nil {
		return Status{}, err
	}
	tunnel.SortPeers(s.Peers)
	return s, nil
}

func (p *Poller) connection() Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.Connection
}

func (p *Poller) setConnection(c Connection) {
	p.mu.Lock()
	old := p.status.Connection
	if old == c {
		p.mu.Unlock()
		return
	}
	cleared := c == Disconnected && p.status.Valid
	if c == Disconnected {
		p.status = Status{}
	}
	p.status.Connection = c
	p.mu.Unlock()

	p.logger.Debug("connection changed", "from", old, "to", c)
	p.bus.Publish(Event{Type: EventConnectionChanged, Payload: ConnectionPayload{Old: old, New: c}})
	if cleared {
		p.bus.Publish(Event{Type: EventStatusCleared})
	}
}
