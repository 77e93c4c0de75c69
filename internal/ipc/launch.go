package ipc

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/process"
)

// LaunchTimeout bounds how long EnsureDaemon waits for a new tunnel process.
const LaunchTimeout = 10 * time.Second

// EnsureDaemon returns a connected client to a running tunnel process.
// If none is running, it starts one in the background and waits for it to
// become ready.
func EnsureDaemon(ctx context.Context) (*Client, error) {
	socketPath := config.SocketPath()
	if running, client := DetectDaemon(socketPath); running {
		return client, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to determine executable path: %w", err)
	}

	if err := config.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create config dirs: %w", err)
	}

	mgr := process.NewManager(config.StatePath())
	if err := mgr.StartDetached(process.TunnelProcess, exe, []string{"daemon", "run"}, config.DaemonLogPath()); err != nil {
		return nil, fmt.Errorf("failed to start tunnel process: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, LaunchTimeout)
	defer cancel()
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("tunnel process did not start within %s (check %s)", LaunchTimeout, config.DaemonLogPath())
		case <-tick.C:
			if running, client := DetectDaemon(socketPath); running {
				return client, nil
			}
		}
	}
}
