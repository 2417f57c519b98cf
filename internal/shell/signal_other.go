//go:build !unix

package shell

import (
	"context"
	"os"
	"os/signal"
)

// HandleSignals routes interrupts to the interrupt flag until ctx is done.
func (c *Control) HandleSignals(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				c.intCaught.Store(true)
			}
		}
	}()
}
