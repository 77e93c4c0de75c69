package autostart

import (
	"fmt"
	"testing"

	"github.com/net2share/meshtun/internal/config"
)

func doc(t *testing.T, any, wifi, eth, mobile bool) *config.Store {
	t.Helper()
	s, err := config.Load([]byte(fmt.Sprintf(
		`{"AutoStart":{"Any":%t,"WiFi":%t,"Ethernet":%t,"Mobile":%t}}`, any, wifi, eth, mobile)))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRules(t *testing.T) {
	cases := []struct {
		name                   string
		any, wifi, eth, mobile bool
		platform               Platform
		want                   []Rule
		enabled                bool
	}{
		{
			name:     "all off",
			platform: Desktop,
			want:     []Rule{{Disconnect, Any}},
		},
		{
			name:     "wifi only",
			wifi:     true,
			platform: Mobile,
			want:     []Rule{{Connect, WiFi}, {Disconnect, Any}},
			enabled:  true,
		},
		{
			name:     "any and wifi on mobile",
			any:      true,
			wifi:     true,
			platform: Mobile,
			want:     []Rule{{Connect, WiFi}, {Connect, Any}, {Disconnect, Any}},
			enabled:  true,
		},
		{
			name:     "everything on desktop drops cellular",
			any:      true,
			wifi:     true,
			eth:      true,
			mobile:   true,
			platform: Desktop,
			want:     []Rule{{Connect, Ethernet}, {Connect, WiFi}, {Connect, Any}, {Disconnect, Any}},
			enabled:  true,
		},
		{
			name:     "everything on mobile drops ethernet",
			any:      true,
			wifi:     true,
			eth:      true,
			mobile:   true,
			platform: Mobile,
			want:     []Rule{{Connect, WiFi}, {Connect, Cellular}, {Connect, Any}, {Disconnect, Any}},
			enabled:  true,
		},
		{
			name:     "ethernet on mobile only",
			eth:      true,
			platform: Mobile,
			want:     []Rule{{Disconnect, Any}},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rules, enabled := Rules(doc(t, c.any, c.wifi, c.eth, c.mobile), c.platform)
			if enabled != c.enabled {
				t.Errorf("enabled = %v, want %v", enabled, c.enabled)
			}
			if len(rules) != len(c.want) {
				t.Fatalf("rules = %v, want %v", rules, c.want)
			}
			for i := range rules {
				if rules[i] != c.want[i] {
					t.Errorf("rule %d = %v, want %v", i, rules[i], c.want[i])
				}
			}
		})
	}
}

func TestRulesAlwaysEndWithSingleDisconnect(t *testing.T) {
	for mask := 0; mask < 16; mask++ {
		s := doc(t, mask&1 != 0, mask&2 != 0, mask&4 != 0, mask&8 != 0)
		for _, p := range []Platform{Desktop, Mobile} {
			rules, enabled := Rules(s, p)
			disconnects := 0
			for _, r := range rules {
				if r.Action == Disconnect {
					disconnects++
				}
			}
			if disconnects != 1 || rules[len(rules)-1].Action != Disconnect {
				t.Errorf("mask %04b: rules %v", mask, rules)
			}
			if enabled != (len(rules) > 1) {
				t.Errorf("mask %04b: enabled %v with %d rules", mask, enabled, len(rules))
			}
		}
	}
}
