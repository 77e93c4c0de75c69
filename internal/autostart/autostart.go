// Package autostart derives on-demand connect/disconnect rules from the
// AutoStart section of the configuration document.
package autostart

import (
	"runtime"

	"github.com/net2share/meshtun/internal/config"
)

// Action is what a rule does when its interface matches.
type Action string

const (
	Connect    Action = "connect"
	Disconnect Action = "disconnect"
)

// Interface is the kind of network a rule matches.
type Interface string

const (
	Any      Interface = "any"
	Ethernet Interface = "ethernet"
	WiFi     Interface = "wifi"
	Cellular Interface = "cellular"
)

// Rule is one on-demand rule.
type Rule struct {
	Action    Action    `json:"action"`
	Interface Interface `json:"interface"`
}

// Platform describes which interface kinds exist on the host.
type Platform struct {
	Wired    bool
	Cellular bool
}

var (
	// Desktop hosts have wired interfaces but no cellular modem.
	Desktop = Platform{Wired: true}
	// Mobile hosts have cellular but no wired interfaces.
	Mobile = Platform{Cellular: true}
)

// Current returns the platform meshtun is running on.
func Current() Platform {
	switch runtime.GOOS {
	case "ios", "android":
		return Mobile
	}
	return Desktop
}

// Rules returns the ordered rule list for doc and whether on-demand should be
// enabled. Connect rules come first, most specific interface first, and the
// list always ends with a single catch-all disconnect rule.
func Rules(doc *config.Store, p Platform) ([]Rule, bool) {
	flag := func(name string) bool {
		v, _ := doc.BoolIn(config.KeyAutoStart, name)
		return v
	}

	var rules []Rule
	if p.Wired && flag(config.AutoStartEthernet) {
		rules = append(rules, Rule{Connect, Ethernet})
	}
	if flag(config.AutoStartWiFi) {
		rules = append(rules, Rule{Connect, WiFi})
	}
	if p.Cellular && flag(config.AutoStartMobile) {
		rules = append(rules, Rule{Connect, Cellular})
	}
	if flag(config.AutoStartAny) {
		rules = append(rules, Rule{Connect, Any})
	}

	enabled := len(rules) > 0
	rules = append(rules, Rule{Disconnect, Any})
	return rules, enabled
}
