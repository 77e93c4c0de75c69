package handlers

import (
	"fmt"
	"strconv"

	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/engine"
	"github.com/net2share/meshtun/internal/ipc"
)

func init() {
	actions.SetHandler(actions.ActionPeerList, HandlePeerList)
	actions.SetHandler(actions.ActionPeerAdd, HandlePeerAdd)
	actions.SetHandler(actions.ActionPeerRemove, HandlePeerRemove)
	actions.SetHandler(actions.ActionPeerRemoveAt, HandlePeerRemoveAt)
}

// HandlePeerList lists configured peers with live status when connected.
func HandlePeerList(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	peers := sess.Peers()
	if len(peers) == 0 {
		ctx.Output.Info("No peers configured. Use 'meshtun peer add' to add one.")
		return nil
	}

	var live map[string]engine.PeerStatus
	if client := connectTunnel(); client != nil {
		rctx, cancel := requestContext(ctx, ipc.DefaultTimeout)
		statuses, err := client.Peers(rctx)
		cancel()
		client.Close()
		if err == nil {
			live = make(map[string]engine.PeerStatus, len(statuses))
			for _, p := range statuses {
				live[p.URI] = p
			}
		}
	}

	headers := []string{"#", "URI", "STATUS"}
	var rows [][]string
	for i, uri := range peers {
		status := "-"
		if live != nil {
			status = "down"
			if p, ok := live[uri]; ok && p.Up {
				status = "up"
			}
		}
		rows = append(rows, []string{strconv.Itoa(i), uri, status})
	}

	ctx.Output.Table(headers, rows)
	if live == nil {
		ctx.Output.Println("\nNot connected; live status unavailable")
	}
	return nil
}

// HandlePeerAdd adds a peer.
func HandlePeerAdd(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	uri := ctx.GetString("uri")
	if uri == "" {
		return actions.NewActionError("--uri is required", "Usage: meshtun peer add --uri tls://host:port")
	}
	if err := actions.ValidatePeer(uri); err != nil {
		return err
	}

	beginProgress(ctx, "Add Peer")
	if err := sess.AddPeer(ctx.Ctx, uri); err != nil {
		return failProgress(ctx, mapSessionError(err, uri))
	}
	ctx.Output.Success(fmt.Sprintf("Peer '%s' added", uri))
	reconnectHint(ctx)
	endProgress(ctx)
	return nil
}

// HandlePeerRemove removes a peer by URI.
func HandlePeerRemove(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	uri, err := RequireArg(ctx, "uri")
	if err != nil {
		return err
	}

	beginProgress(ctx, "Remove Peer")
	if err := sess.RemovePeer(ctx.Ctx, uri); err != nil {
		return failProgress(ctx, mapSessionError(err, uri))
	}
	ctx.Output.Success(fmt.Sprintf("Peer '%s' removed", uri))
	reconnectHint(ctx)
	endProgress(ctx)
	return nil
}

// HandlePeerRemoveAt removes a peer by its position in the list.
func HandlePeerRemoveAt(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	index := ctx.GetInt("index")
	peers := sess.Peers()
	if err := sess.RemovePeerAt(ctx.Ctx, index); err != nil {
		return actions.WrapError(err, err.Error(), "Use 'meshtun peer list' to see peer positions")
	}
	if index >= 0 && index < len(peers) {
		ctx.Output.Success(fmt.Sprintf("Peer '%s' removed", peers[index]))
	}
	reconnectHint(ctx)
	return nil
}
