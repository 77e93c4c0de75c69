// Package handlers provides the business logic for meshtun actions.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/ipc"
	"github.com/net2share/meshtun/internal/session"
)

// AppVersion is set by the cmd package.
var AppVersion = "dev"

// LoadSession opens and caches the session.
func LoadSession(ctx *actions.Context) (*session.Session, error) {
	if ctx.Session != nil {
		return ctx.Session, nil
	}
	if err := ctx.Reload(); err != nil {
		return nil, actions.WrapError(err, "failed to load configuration",
			fmt.Sprintf("Profile: %s", config.ProfilePath()))
	}
	return ctx.Session, nil
}

// RequireArg gets a named argument from the positional args or the
// matching flag value.
func RequireArg(ctx *actions.Context, name string) (string, error) {
	v := ctx.GetArg(0)
	if v == "" {
		v = ctx.GetString(name)
	}
	if v == "" {
		return "", actions.NewActionError(name+" required", "")
	}
	return v, nil
}

// RequirePeers returns an error if no peers are configured.
func RequirePeers(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}
	if len(sess.Peers()) == 0 {
		return actions.NoPeersError()
	}
	return nil
}

// connectTunnel returns a client for the running tunnel process, or nil when
// none is running.
func connectTunnel() *ipc.Client {
	if running, client := ipc.DetectDaemon(config.SocketPath()); running {
		return client
	}
	return nil
}

// reconnectHint tells the user that a running tunnel keeps its old
// configuration until restarted.
func reconnectHint(ctx *actions.Context) {
	client := connectTunnel()
	if client == nil {
		return
	}
	client.Close()
	ctx.Output.Info("The running tunnel uses the previous configuration. Reconnect to apply: meshtun down && meshtun up")
}

// mapSessionError turns session sentinels into hinted action errors.
func mapSessionError(err error, uri string) error {
	switch {
	case errors.Is(err, session.ErrPeerExists):
		return actions.PeerExistsError(uri)
	case errors.Is(err, session.ErrPeerNotFound):
		return actions.PeerNotFoundError(uri)
	}
	return err
}

// requestContext bounds one interactive request.
func requestContext(ctx *actions.Context, d time.Duration) (context.Context, context.CancelFunc) {
	parent := ctx.Ctx
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, d)
}

// beginProgress starts a progress view in interactive mode.
func beginProgress(ctx *actions.Context, title string) {
	if ctx.IsInteractive {
		ctx.Output.BeginProgress(title)
	}
}

// endProgress ends a progress view in interactive mode.
func endProgress(ctx *actions.Context) {
	if ctx.IsInteractive {
		ctx.Output.EndProgress()
	}
}

// failProgress shows an error in the progress view and returns the error.
func failProgress(ctx *actions.Context, err error) error {
	if ctx.IsInteractive {
		ctx.Output.Error(fmt.Sprintf("Failed: %v", err))
		ctx.Output.EndProgress()
	}
	return err
}
