//go:build unix

package handlers

import (
	"os"
	"os/signal"

	"github.com/net2share/meshtun/internal/poller"
	"golang.org/x/sys/unix"
)

// handleSuspend pauses p while the job is stopped from the terminal and
// resumes it on SIGCONT. The returned func stops the handling.
func handleSuspend(p *poller.Poller) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTSTP, unix.SIGCONT)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigs:
				switch sig {
				case unix.SIGTSTP:
					p.Suspend()
					// Catching SIGTSTP cancels the stop; stop for real.
					unix.Kill(unix.Getpid(), unix.SIGSTOP)
				case unix.SIGCONT:
					p.Resume()
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
