package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/net2share/meshtun/internal/engine"
	"github.com/net2share/meshtun/internal/tunnel"
)

// DefaultTimeout bounds one request when the caller's context has no
// earlier deadline.
const DefaultTimeout = 2 * time.Second

// ErrUnavailable means the tunnel process socket could not be reached.
var ErrUnavailable = errors.New("tunnel process not reachable")

// Client sends commands to the tunnel process. It dials lazily and redials
// after any failed request. It is safe for concurrent use; requests are
// serialized on one connection.
type Client struct {
	socketPath string
	timeout    time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewClient returns a client for socketPath without connecting.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: DefaultTimeout}
}

// Dial connects to the tunnel process socket.
func Dial(socketPath string) (*Client, error) {
	c := NewClient(socketPath)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// SetTimeout overrides DefaultTimeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) connectLocked(ctx context.Context) error {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.conn = conn
	return nil
}

// Send issues one command and returns the response body. It returns
// ErrNoResponse when the tunnel process had no answer and ErrTimeout when
// none arrived in time.
func (c *Client) Send(ctx context.Context, cmd string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return nil, err
		}
	}
	conn := c.conn

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	payload, err := c.roundTrip(conn, cmd)
	if err != nil {
		conn.Close()
		c.conn = nil
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ctxErr
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return decodeResponse(payload)
}

func (c *Client) roundTrip(conn net.Conn, cmd string) ([]byte, error) {
	if err := WriteFrame(conn, []byte(cmd)); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	payload, err := ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return payload, nil
}

func (c *Client) sendJSON(ctx context.Context, cmd string, v any) error {
	data, err := c.Send(ctx, cmd)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid %s response: %w", cmd, err)
	}
	return nil
}

// Ping verifies the tunnel process is alive.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	var result PingResult
	if err := c.sendJSON(ctx, CmdPing, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shutdown asks the tunnel process to stop the tunnel and exit.
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.Send(ctx, CmdShutdown)
	return err
}

// Status returns the lifecycle state of the tunnel.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var result StatusResult
	if err := c.sendJSON(ctx, CmdStatus, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Summary returns the full status in one request.
func (c *Client) Summary(ctx context.Context) (*tunnel.Summary, error) {
	var result tunnel.Summary
	if err := c.sendJSON(ctx, CmdSummary, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Address returns the node address.
func (c *Client) Address(ctx context.Context) (string, error) {
	data, err := c.Send(ctx, CmdAddress)
	return string(data), err
}

// Subnet returns the node subnet.
func (c *Client) Subnet(ctx context.Context) (string, error) {
	data, err := c.Send(ctx, CmdSubnet)
	return string(data), err
}

// Peers returns the node's peers.
func (c *Client) Peers(ctx context.Context) ([]engine.PeerStatus, error) {
	var peers []engine.PeerStatus
	if err := c.sendJSON(ctx, CmdPeers, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

// DetectDaemon checks if a tunnel process is running and returns a
// connected client.
func DetectDaemon(socketPath string) (bool, *Client) {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return false, nil
	}

	client, err := Dial(socketPath)
	if err != nil {
		// Stale socket
		os.Remove(socketPath)
		return false, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	if _, err := client.Ping(ctx); err != nil {
		client.Close()
		return false, nil
	}

	return true, client
}
