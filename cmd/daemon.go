package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/engine"
	"github.com/net2share/meshtun/internal/ipc"
	"github.com/net2share/meshtun/internal/process"
	"github.com/net2share/meshtun/internal/tun"
	"github.com/net2share/meshtun/internal/tunnel"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the tunnel process",
}

// daemonRunCmd is the tunnel process itself, started by 'up' and systemd.
var daemonRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the tunnel in the foreground",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("log-level") {
			logger = newLogger("info")
		}

		socketPath := config.SocketPath()
		if running, client := ipc.DetectDaemon(socketPath); running {
			client.Close()
			return fmt.Errorf("tunnel process is already running (socket: %s)", socketPath)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := &actions.Context{Ctx: ctx, Logger: logger}
		if err := c.Reload(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg, err := c.Session.Config()
		if err != nil {
			return fmt.Errorf("failed to serialize configuration: %w", err)
		}

		t := tunnel.New(engine.NewYggdrasil(logger), tun.Opener(logger), tunnel.WithLogger(logger))

		// Serve status first so controllers see the Starting state.
		srv := ipc.NewServer(socketPath, Version, t, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start IPC server: %w", err)
		}
		defer srv.Stop()

		mgr := process.NewManager(config.StatePath())
		if err := mgr.Record(process.TunnelProcess); err != nil {
			logger.Warn("failed to record tunnel process", "err", err)
		}
		defer mgr.Forget(process.TunnelProcess)

		logger.Info("tunnel process ready", "socket", socketPath, "pid", os.Getpid())

		if err := t.Start(ctx, cfg); err != nil {
			return fmt.Errorf("failed to start tunnel: %w", err)
		}

		reason := "signal"
		select {
		case <-ctx.Done():
		case <-srv.ShutdownCh:
			reason = "shutdown requested"
		}

		t.Stop(reason)
		return nil
	},
}

const systemdUnit = `[Unit]
Description=Yggdrasil Mesh Tunnel
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s daemon run
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

const (
	systemdServiceName = "meshtun"
	systemdUnitPath    = "/etc/systemd/system/meshtun.service"
)

var daemonEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Install and enable the systemd service (Linux only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSystemd(); err != nil {
			return err
		}

		binPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to determine binary path: %w", err)
		}
		binPath, err = filepath.Abs(binPath)
		if err != nil {
			return fmt.Errorf("failed to resolve binary path: %w", err)
		}

		unit := fmt.Sprintf(systemdUnit, binPath)
		if err := os.WriteFile(systemdUnitPath, []byte(unit), 0644); err != nil {
			return fmt.Errorf("failed to write unit file: %w", err)
		}

		if err := runSystemctl(cmd.Context(), "daemon-reload"); err != nil {
			return err
		}
		if err := runSystemctl(cmd.Context(), "enable", systemdServiceName); err != nil {
			return err
		}

		fmt.Println("Service installed and enabled.")
		fmt.Println("Start with: sudo systemctl start meshtun")
		return nil
	},
}

var daemonDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable and remove the systemd service (Linux only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSystemd(); err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := runSystemctl(ctx, "stop", systemdServiceName); err != nil {
			logger.Warn("systemctl stop failed", "err", err)
		}
		if err := runSystemctl(ctx, "disable", systemdServiceName); err != nil {
			logger.Warn("systemctl disable failed", "err", err)
		}

		if err := os.Remove(systemdUnitPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove unit file: %w", err)
		}

		if err := runSystemctl(ctx, "daemon-reload"); err != nil {
			return err
		}

		fmt.Println("Service removed.")
		return nil
	},
}

func requireSystemd() error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("service management is only supported on Linux")
	}
	if os.Geteuid() != 0 {
		return fmt.Errorf("root privileges required; run with sudo")
	}
	return nil
}

func runSystemctl(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "systemctl", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("systemctl %v failed: %w", args, err)
	}
	return nil
}

func init() {
	daemonCmd.AddCommand(daemonRunCmd)
	daemonCmd.AddCommand(daemonEnableCmd)
	daemonCmd.AddCommand(daemonDisableCmd)
	rootCmd.AddCommand(daemonCmd)
}
