package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/ipc"
	"github.com/net2share/meshtun/internal/poller"
	"github.com/net2share/meshtun/internal/process"
	"github.com/net2share/meshtun/internal/tunnel"
)

// ConnectTimeout bounds how long up waits for the tunnel to run.
const ConnectTimeout = tunnel.DefaultStartTimeout + 5*time.Second

// DisconnectTimeout bounds how long down waits for the tunnel process to go.
const DisconnectTimeout = 10 * time.Second

var errProcessExited = errors.New("tunnel process exited")

func init() {
	actions.SetHandler(actions.ActionUp, HandleUp)
	actions.SetHandler(actions.ActionDown, HandleDown)
}

// HandleUp starts the tunnel process and waits for the tunnel to run.
func HandleUp(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	beginProgress(ctx, "Connecting")

	if len(sess.Peers()) == 0 {
		ctx.Output.Warning("No peers configured; the node will not reach the wider mesh")
	}

	ctx.Output.Status("Starting tunnel process...")
	client, err := ipc.EnsureDaemon(ctx.Ctx)
	if err != nil {
		return failProgress(ctx, actions.WrapError(err, "failed to start tunnel process",
			"Creating the tunnel interface needs root; try: sudo meshtun up"))
	}
	defer client.Close()

	sum, err := waitRunning(ctx.Ctx, client)
	if err != nil {
		return failProgress(ctx, actions.WrapError(err, fmt.Sprintf("tunnel did not start: %v", err),
			fmt.Sprintf("See %s", config.DaemonLogPath())))
	}

	ctx.Output.Success("Connected")
	ctx.Output.Println(ctx.Output.KV("Address", sum.Address))
	ctx.Output.Println(ctx.Output.KV("Subnet", sum.Subnet))
	endProgress(ctx)
	return nil
}

// waitRunning polls the tunnel process until the tunnel runs. An idle
// tunnel is still being started; a vanished socket means the process gave
// up.
func waitRunning(ctx context.Context, client *ipc.Client) (*tunnel.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()

	for {
		st, err := client.Status(ctx)
		switch {
		case err == nil:
			if poller.ConnectionFromState(st.State) == poller.Connected {
				return client.Summary(ctx)
			}
		case errors.Is(err, ipc.ErrUnavailable):
			return nil, errProcessExited
		case errors.Is(err, ipc.ErrTimeout):
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out after %s", ConnectTimeout)
		case <-tick.C:
		}
	}
}

// HandleDown asks the tunnel process to shut down. A process that does not
// answer is signalled instead.
func HandleDown(ctx *actions.Context) error {
	beginProgress(ctx, "Disconnecting")

	if client := connectTunnel(); client != nil {
		rctx, cancel := requestContext(ctx, ipc.DefaultTimeout)
		err := client.Shutdown(rctx)
		cancel()
		client.Close()
		if err != nil {
			return failProgress(ctx, actions.WrapError(err, "failed to stop tunnel", ""))
		}
		if !waitGone(config.SocketPath(), DisconnectTimeout) {
			ctx.Output.Warning("Tunnel process is still shutting down")
		}
		ctx.Output.Success("Disconnected")
		endProgress(ctx)
		return nil
	}

	mgr := process.NewManager(config.StatePath())
	if mgr.IsRunning(process.TunnelProcess) {
		if info := mgr.GetProcessInfo(process.TunnelProcess); info != nil {
			ctx.Output.Warning(fmt.Sprintf("Tunnel process (pid %d) is not answering; stopping it", info.PID))
		}
		if err := mgr.Stop(process.TunnelProcess); err != nil {
			return failProgress(ctx, actions.WrapError(err, "failed to stop tunnel process", ""))
		}
		ctx.Output.Success("Stopped")
		endProgress(ctx)
		return nil
	}

	ctx.Output.Info("Not connected")
	endProgress(ctx)
	return nil
}

func waitGone(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
