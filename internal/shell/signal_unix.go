//go:build unix

package shell

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// HandleSignals routes SIGINT to the interrupt flag and SIGPIPE to the
// disconnected counter until ctx is done. SIGPIPE never terminates the
// process while the handler is installed.
func (c *Control) HandleSignals(ctx context.Context) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, unix.SIGINT, unix.SIGPIPE)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				c.handleSignal(sig.(syscall.Signal))
			}
		}
	}()
}

func (c *Control) handleSignal(sig syscall.Signal) {
	switch sig {
	case unix.SIGINT:
		c.intCaught.Store(true)
	case unix.SIGPIPE:
		c.disconnected.Add(1)
	}
	c.logger.Debugf("caught %s", unix.SignalName(sig))
}
