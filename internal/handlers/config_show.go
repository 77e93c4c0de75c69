package handlers

import (
	"fmt"
	"strings"

	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/config"
)

func init() {
	actions.SetHandler(actions.ActionConfigShow, HandleConfigShow)
}

// HandleConfigShow shows the current configuration.
func HandleConfigShow(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}
	doc := sess.Document()

	publicKey := doc.PublicKey()
	if publicKey == "" {
		publicKey = "(none)"
	}

	lines := []string{
		fmt.Sprintf("Profile: %s", sess.ProfilePath()),
		"",
		fmt.Sprintf("Node name: %s", doc.NodeName()),
		fmt.Sprintf("Public key: %s", publicKey),
	}

	peers := doc.StringList(config.KeyPeers)
	lines = append(lines, "")
	if len(peers) == 0 {
		lines = append(lines, "Peers: none")
	} else {
		lines = append(lines, fmt.Sprintf("Peers: %d configured", len(peers)))
		for _, p := range peers {
			lines = append(lines, fmt.Sprintf("  - %s", p))
		}
	}

	if v, ok := doc.Get(config.KeyMulticastInterfaces); ok {
		items, _ := v.AsSequence()
		lines = append(lines, "", "Multicast interfaces:")
		for _, item := range items {
			regex, _ := item.Lookup("Regex")
			beacon, _ := item.Lookup("Beacon")
			listen, _ := item.Lookup("Listen")
			r, _ := regex.AsString()
			b, _ := beacon.AsBool()
			l, _ := listen.AsBool()
			lines = append(lines, fmt.Sprintf("  - %s (beacon: %t, listen: %t)", r, b, l))
		}
	}

	var auto []string
	for flag, on := range sess.AutoStart() {
		if on {
			auto = append(auto, flag)
		}
	}
	lines = append(lines, "")
	if len(auto) == 0 {
		lines = append(lines, "Auto-connect: off")
	} else {
		lines = append(lines, fmt.Sprintf("Auto-connect: %s", strings.Join(sortedFlags(auto), ", ")))
	}

	ctx.Output.Box("Configuration", lines)
	return nil
}

// sortedFlags orders flags the way they are listed everywhere else.
func sortedFlags(on []string) []string {
	set := make(map[string]bool, len(on))
	for _, f := range on {
		set[f] = true
	}
	var out []string
	for _, in := range autoStartInputs {
		if set[in.flag] {
			out = append(out, in.flag)
		}
	}
	return out
}
