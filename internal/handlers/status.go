package handlers

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/engine"
	"github.com/net2share/meshtun/internal/poller"
)

func init() {
	actions.SetHandler(actions.ActionStatus, HandleStatus)
}

// HandleStatus shows the tunnel status, once or continuously with --watch.
func HandleStatus(ctx *actions.Context) error {
	client := connectTunnel()
	if client == nil {
		return renderStatus(ctx, poller.Status{Connection: poller.Disconnected})
	}
	defer client.Close()

	p := poller.New(client, nil, poller.WithLogger(ctx.Logger))

	if ctx.GetBool("watch") && !ctx.IsInteractive {
		return watchStatus(ctx, p)
	}

	if err := p.Refresh(ctx.Ctx); err != nil {
		return actions.WrapError(err, "failed to query tunnel status", "")
	}
	return renderStatus(ctx, p.Status())
}

// watchStatus redraws the status on every refresh until interrupted. A
// terminal stop (Ctrl+Z) suspends polling until the job is continued.
func watchStatus(ctx *actions.Context, p *poller.Poller) error {
	runCtx, stop := signal.NotifyContext(ctx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p.Bus().Subscribe(poller.EventConnectionChanged, func(e poller.Event) {
		change := e.Payload.(poller.ConnectionPayload)
		ctx.Output.Status(fmt.Sprintf("%s %s %s", change.Old, actions.SymbolArrow, change.New))
	})
	p.Bus().Subscribe(poller.EventStatusCleared, func(poller.Event) {
		renderStatus(ctx, p.Status())
	})
	p.Bus().Subscribe(poller.EventStatusUpdated, func(e poller.Event) {
		renderStatus(ctx, e.Payload.(poller.Status))
	})

	stopSuspend := handleSuspend(p)
	defer stopSuspend()

	if err := p.Run(runCtx); err != nil && runCtx.Err() == nil {
		return err
	}
	return nil
}

func renderStatus(ctx *actions.Context, st poller.Status) error {
	symbol := actions.SymbolStopped
	if st.Connection == poller.Connected {
		symbol = actions.SymbolRunning
	}
	state := fmt.Sprintf("%s %s", symbol, st.Connection)

	address, subnet, publicKey := "N/A", "N/A", "N/A"
	if st.Valid {
		address, subnet = st.Address, st.Subnet
		if st.PublicKey != "" {
			publicKey = st.PublicKey
		}
	}

	if ctx.IsInteractive {
		info := actions.InfoConfig{
			Title: "Tunnel Status",
			Sections: []actions.InfoSection{
				{
					Rows: []actions.InfoRow{
						{Key: "Status", Value: state},
						{Key: "Address", Value: address},
						{Key: "Subnet", Value: subnet},
						{Key: "Public key", Value: publicKey},
					},
				},
			},
		}
		if len(st.Peers) > 0 {
			section := actions.InfoSection{Title: "Peers"}
			for _, p := range st.Peers {
				section.Rows = append(section.Rows, actions.InfoRow{
					Key:     p.URI,
					Columns: peerColumns(p),
				})
			}
			info.Sections = append(info.Sections, section)
		}
		return ctx.Output.ShowInfo(info)
	}

	lines := []string{
		ctx.Output.KV("Status", state),
		ctx.Output.KV("Address", address),
		ctx.Output.KV("Subnet", subnet),
		ctx.Output.KV("Public key", publicKey),
	}
	if !st.UpdatedAt.IsZero() {
		lines = append(lines, ctx.Output.KV("Updated", st.UpdatedAt.Format(time.TimeOnly)))
	}
	ctx.Output.Box("Tunnel Status", lines)

	if len(st.Peers) > 0 {
		rows := make([][]string, 0, len(st.Peers))
		for _, p := range st.Peers {
			rows = append(rows, append([]string{p.URI}, peerColumns(p)...))
		}
		ctx.Output.Table([]string{"PEER", "STATE", "DIRECTION", "UPTIME", "RX", "TX"}, rows)
	}
	return nil
}

func peerColumns(p engine.PeerStatus) []string {
	state := "down"
	if p.Up {
		state = "up"
	}
	dir := "outbound"
	if p.Inbound {
		dir = "inbound"
	}
	uptime := "-"
	if p.Up {
		uptime = time.Duration(p.UptimeNanos).Truncate(time.Second).String()
	}
	return []string{state, dir, uptime, formatBytes(p.RXBytes), formatBytes(p.TXBytes)}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
