// Package menu provides the interactive menu for meshtun.
package menu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/net2share/go-corelib/osdetect"
	"github.com/net2share/go-corelib/tui"
	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/ipc"
	"github.com/net2share/meshtun/internal/poller"
	"github.com/net2share/meshtun/internal/session"
)

// errCancelled is returned when user cancels/backs out.
var errCancelled = errors.New("cancelled")

// Version and BuildTime are set by cmd package.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// headerTimeout bounds the status query behind the menu header.
const headerTimeout = 2 * time.Second

// Menu state shared by every action run from the menu.
var (
	appCtx = context.Background()
	logger = slog.New(slog.DiscardHandler)
	sess   *session.Session
)

const meshtunBanner = `
                       __    __
   ____ ___  ___  ____/ /_  / /___  ______
  / __ '__ \/ _ \/ ___/ __ \/ __/ / / / __ \
 / / / / / /  __(__  ) / / / /_/ /_/ / / / /
/_/ /_/ /_/\___/____/_/ /_/\__/\__,_/_/ /_/
`

// PrintBanner displays the meshtun banner with version info.
func PrintBanner() {
	tui.PrintBanner(tui.BannerConfig{
		AppName:   "Yggdrasil Mesh Tunnel",
		Version:   Version,
		BuildTime: BuildTime,
		ASCII:     meshtunBanner,
	})
}

// currentStatus asks a running tunnel for its status. Without one it reports
// disconnected.
func currentStatus() poller.Status {
	running, client := ipc.DetectDaemon(config.SocketPath())
	if !running {
		return poller.Status{Connection: poller.Disconnected}
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(appCtx, headerTimeout)
	defer cancel()

	p := poller.New(client, nil, poller.WithLogger(logger))
	if err := p.Refresh(ctx); err != nil {
		logger.Debug("status query failed", "err", err)
	}
	return p.Status()
}

// buildSummary builds the main menu header.
func buildSummary(st poller.Status) string {
	peers := sess.Peers()
	if len(peers) == 0 {
		return fmt.Sprintf("%s | No peers configured", capitalize(st.Connection.String()))
	}

	summary := capitalize(st.Connection.String())
	if st.Valid {
		up := 0
		for _, p := range st.Peers {
			if p.Up {
				up++
			}
		}
		summary += fmt.Sprintf(" | %s | Peers: %d/%d up", st.Address, up, len(peers))
	} else {
		summary += fmt.Sprintf(" | Peers: %d", len(peers))
	}
	return summary
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// RunInteractive shows the main interactive menu.
func RunInteractive(ctx context.Context, l *slog.Logger) error {
	appCtx = ctx
	if l != nil {
		logger = l
	}

	PrintBanner()

	osInfo, err := osdetect.Detect()
	if err != nil {
		tui.PrintWarning("Could not detect OS: " + err.Error())
	} else {
		tui.PrintInfo(fmt.Sprintf("Detected OS: %s", osInfo.PrettyName))
	}

	arch := osdetect.GetArch()
	tui.PrintInfo(fmt.Sprintf("Architecture: %s", arch))

	c := &actions.Context{Ctx: ctx, Logger: logger}
	if err := c.Reload(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	sess = c.Session

	return runMainMenu()
}

func runMainMenu() error {
	for {
		st := currentStatus()

		var options []tui.MenuOption
		switch st.Connection {
		case poller.Disconnected:
			options = append(options, tui.MenuOption{Label: "Connect", Value: actions.ActionUp})
		default:
			options = append(options, tui.MenuOption{Label: "Disconnect", Value: actions.ActionDown})
		}
		options = append(options,
			tui.MenuOption{Label: "Status", Value: actions.ActionStatus},
			tui.MenuOption{Label: "Peers →", Value: actions.ActionPeer},
			tui.MenuOption{Label: "Auto-connect →", Value: actions.ActionAutoStart},
			tui.MenuOption{Label: "Configure →", Value: actions.ActionConfig},
			tui.MenuOption{Label: "Exit", Value: "exit"},
		)

		choice, err := tui.RunMenu(tui.MenuConfig{
			Header:  buildSummary(st),
			Title:   "Yggdrasil Mesh Tunnel",
			Options: options,
		})
		if err != nil {
			return err
		}
		if choice == "" || choice == "exit" {
			return nil
		}

		err = handleMainMenuChoice(choice)
		if errors.Is(err, errCancelled) {
			continue
		}
		if err != nil {
			_ = tui.ShowMessage(tui.AppMessage{Type: "error", Message: err.Error()})
		}
	}
}

func handleMainMenuChoice(choice string) error {
	switch choice {
	case actions.ActionUp:
		if len(sess.Peers()) == 0 {
			_ = tui.ShowMessage(tui.AppMessage{Type: "info", Message: "No peers configured. Add one first."})
			return errCancelled
		}
		return RunAction(actions.ActionUp)
	case actions.ActionPeer:
		return runPeerMenu()
	case actions.ActionAutoStart:
		return runAutoStartMenu()
	case actions.ActionConfig:
		return RunSubmenu(actions.ActionConfig)
	default:
		return RunAction(choice)
	}
}

// runPeerMenu shows the peer submenu.
func runPeerMenu() error {
	for {
		options := []tui.MenuOption{
			{Label: "Add", Value: actions.ActionPeerAdd},
			{Label: "List →", Value: "list"},
			{Label: "Back", Value: "back"},
		}

		choice, err := tui.RunMenu(tui.MenuConfig{
			Title:   "Peers",
			Options: options,
		})
		if err != nil || choice == "" || choice == "back" {
			return errCancelled
		}

		switch choice {
		case actions.ActionPeerAdd:
			if err := RunAction(actions.ActionPeerAdd); err != nil && !errors.Is(err, errCancelled) {
				_ = tui.ShowMessage(tui.AppMessage{Type: "error", Message: err.Error()})
			}
		case "list":
			_ = runPeerListMenu()
		}
	}
}

// runPeerListMenu shows every configured peer with its live state and allows
// selecting one to manage.
func runPeerListMenu() error {
	for {
		peers := sess.Peers()
		if len(peers) == 0 {
			_ = tui.ShowMessage(tui.AppMessage{Type: "info", Message: "No peers configured. Add one first."})
			return errCancelled
		}

		st := currentStatus()
		up := make(map[string]bool, len(st.Peers))
		for _, p := range st.Peers {
			up[p.URI] = p.Up
		}

		var options []tui.MenuOption
		for _, uri := range peers {
			icon := actions.SymbolStopped
			if up[uri] {
				icon = actions.SymbolRunning
			}
			options = append(options, tui.MenuOption{Label: fmt.Sprintf("%s %s", icon, uri), Value: uri})
		}
		options = append(options, tui.MenuOption{Label: "Back", Value: "back"})

		selected, err := tui.RunMenu(tui.MenuConfig{
			Title:       "Select Peer",
			Description: fmt.Sprintf("Tunnel %s", st.Connection),
			Options:     options,
		})
		if err != nil || selected == "" || selected == "back" {
			return errCancelled
		}

		_ = runPeerManageMenu(selected)
	}
}

// runPeerManageMenu shows management options for one peer.
func runPeerManageMenu(uri string) error {
	choice, err := tui.RunMenu(tui.MenuConfig{
		Title: uri,
		Options: []tui.MenuOption{
			{Label: "Remove", Value: actions.ActionPeerRemove},
			{Label: "Back", Value: "back"},
		},
	})
	if err != nil || choice == "" || choice == "back" {
		return errCancelled
	}

	if err := runActionWithArgs(choice, uri); err != nil {
		if errors.Is(err, errCancelled) {
			return err
		}
		_ = tui.ShowMessage(tui.AppMessage{Type: "error", Message: err.Error()})
		return err
	}
	return nil
}

// runAutoStartMenu toggles the auto-connect flags one at a time.
func runAutoStartMenu() error {
	labels := map[string]string{
		config.AutoStartAny:      "Any network",
		config.AutoStartWiFi:     "Wi-Fi",
		config.AutoStartEthernet: "Ethernet",
		config.AutoStartMobile:   "Mobile data",
	}

	for {
		flags := sess.AutoStart()

		var options []tui.MenuOption
		for _, flag := range session.AutoStartFlags {
			mark := "[ ]"
			if flags[flag] {
				mark = "[x]"
			}
			options = append(options, tui.MenuOption{Label: fmt.Sprintf("%s %s", mark, labels[flag]), Value: flag})
		}
		options = append(options,
			tui.MenuOption{Label: "Show rules", Value: "show"},
			tui.MenuOption{Label: "Back", Value: "back"},
		)

		choice, err := tui.RunMenu(tui.MenuConfig{
			Title:       "Auto-connect",
			Description: "Connect automatically when the selected networks are in use",
			Options:     options,
		})
		if err != nil || choice == "" || choice == "back" {
			return errCancelled
		}

		if choice == "show" {
			if err := RunAction(actions.ActionAutoStartShow); err != nil && !errors.Is(err, errCancelled) {
				_ = tui.ShowMessage(tui.AppMessage{Type: "error", Message: err.Error()})
			}
			continue
		}

		if err := sess.SetAutoStart(appCtx, choice, !flags[choice]); err != nil {
			_ = tui.ShowMessage(tui.AppMessage{Type: "error", Message: err.Error()})
		}
	}
}
