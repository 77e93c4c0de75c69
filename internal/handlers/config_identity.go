package handlers

import (
	"fmt"

	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/config"
)

func init() {
	actions.SetHandler(actions.ActionConfigRegenerate, HandleConfigRegenerate)
	actions.SetHandler(actions.ActionConfigNodeName, HandleConfigNodeName)
	actions.SetHandler(actions.ActionConfigMulticast, HandleConfigMulticast)
}

// HandleConfigRegenerate replaces the node identity.
func HandleConfigRegenerate(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	beginProgress(ctx, "Regenerate Keys")
	old := sess.Document().PublicKey()
	if err := sess.Regenerate(ctx.Ctx); err != nil {
		return failProgress(ctx, actions.WrapError(err, "failed to generate a new identity", ""))
	}
	ctx.Output.Success("New identity generated")
	ctx.Output.Println(ctx.Output.KV("Old public key", old))
	ctx.Output.Println(ctx.Output.KV("New public key", sess.Document().PublicKey()))
	reconnectHint(ctx)
	endProgress(ctx)
	return nil
}

// HandleConfigNodeName sets the advertised node name.
func HandleConfigNodeName(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	if err := sess.SetNodeName(ctx.Ctx, ctx.GetString("name")); err != nil {
		return err
	}
	ctx.Output.Success(fmt.Sprintf("Node name set to '%s'", sess.NodeName()))
	return nil
}

// HandleConfigMulticast changes Beacon and Listen on the multicast records.
// Flags that were not given keep the value of the first record.
func HandleConfigMulticast(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	if !ctx.Has("beacon") && !ctx.Has("listen") {
		return actions.NewActionError("nothing to change", "Pass --beacon and/or --listen (e.g. --beacon=false)")
	}

	beacon, listen := true, true
	if v, ok := sess.Document().Get(config.KeyMulticastInterfaces); ok {
		if items, _ := v.AsSequence(); len(items) > 0 {
			if b, ok := items[0].Lookup("Beacon"); ok {
				beacon, _ = b.AsBool()
			}
			if l, ok := items[0].Lookup("Listen"); ok {
				listen, _ = l.AsBool()
			}
		}
	}
	if ctx.Has("beacon") {
		beacon = ctx.GetBool("beacon")
	}
	if ctx.Has("listen") {
		listen = ctx.GetBool("listen")
	}

	if err := sess.SetMulticast(ctx.Ctx, beacon, listen); err != nil {
		return err
	}
	ctx.Output.Success(fmt.Sprintf("Multicast set (beacon: %t, listen: %t)", beacon, listen))
	reconnectHint(ctx)
	return nil
}
