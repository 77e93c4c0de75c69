package handlers

import (
	"fmt"
	"strings"

	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/session"
)

// autoStartInputs maps action inputs to AutoStart flags.
var autoStartInputs = []struct {
	input string
	flag  string
}{
	{"any", config.AutoStartAny},
	{"wifi", config.AutoStartWiFi},
	{"ethernet", config.AutoStartEthernet},
	{"mobile", config.AutoStartMobile},
}

func init() {
	actions.SetHandler(actions.ActionAutoStartShow, HandleAutoStartShow)
	actions.SetHandler(actions.ActionAutoStartSet, HandleAutoStartSet)
}

// HandleAutoStartShow shows the AutoStart flags and derived rules.
func HandleAutoStartShow(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}
	showAutoStart(ctx, sess)
	return nil
}

// HandleAutoStartSet changes the flags that were given.
func HandleAutoStartSet(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	changed := 0
	for _, in := range autoStartInputs {
		if !ctx.Has(in.input) {
			continue
		}
		if err := sess.SetAutoStart(ctx.Ctx, in.flag, ctx.GetBool(in.input)); err != nil {
			return err
		}
		changed++
	}
	if changed == 0 {
		return actions.NewActionError("nothing to change",
			"Pass one or more of --any, --wifi, --ethernet, --mobile (e.g. --wifi=false)")
	}

	ctx.Output.Success("Auto-connect settings saved")
	showAutoStart(ctx, sess)
	return nil
}

func showAutoStart(ctx *actions.Context, sess *session.Session) {
	flags := sess.AutoStart()
	var rows [][]string
	for _, flag := range session.AutoStartFlags {
		state := "off"
		if flags[flag] {
			state = "on"
		}
		rows = append(rows, []string{flag, state})
	}
	ctx.Output.Table([]string{"NETWORK", "AUTO-CONNECT"}, rows)

	p := sess.Profile()
	var rules []string
	for _, r := range p.OnDemandRules {
		rules = append(rules, fmt.Sprintf("%s on %s", r.Action, r.Interface))
	}
	state := "disabled"
	if p.OnDemandEnabled {
		state = "enabled"
	}
	ctx.Output.Println()
	ctx.Output.Println(ctx.Output.KV("On-demand", state))
	ctx.Output.Println(ctx.Output.KV("Rules", strings.Join(rules, ", ")))
}
