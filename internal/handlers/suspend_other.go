//go:build !unix

package handlers

import "github.com/net2share/meshtun/internal/poller"

func handleSuspend(*poller.Poller) func() {
	return func() {}
}
