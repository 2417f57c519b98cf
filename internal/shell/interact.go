package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	promptRW = "virsh # "
	promptRO = "virsh > "
)

// Prompt returns the interactive prompt for the connection mode.
func (c *Control) Prompt() string {
	if c.ReadOnly() {
		return promptRO
	}
	return promptRW
}

// Greet prints the interactive banner unless the shell is quiet.
func (c *Control) Greet() {
	c.PrintExtra("Welcome to virsh, the virtualization interactive terminal.\n\n")
	c.PrintExtra("Type:  'help' for help with commands\n")
	c.PrintExtra("       'quit' to quit\n\n")
}

// Interact reads and runs lines from ed until EOF or quit. History is
// loaded from and saved to HistoryFile when one is set.
func (c *Control) Interact(ctx context.Context, ed Editor) error {
	ed.SetCompleter(RegistryCompleter(c.reg))
	if c.HistoryFile != "" {
		if err := ed.LoadHistory(c.HistoryFile); err != nil {
			c.logger.WithError(err).Warn("failed to load history")
		}
	}

	c.Greet()
	for !c.exiting {
		line, err := ed.ReadLine(c.Prompt())
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.Out)
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ed.AddHistory(line)
		c.Run(ctx, line)
	}

	if c.HistoryFile != "" {
		if err := ed.SaveHistory(c.HistoryFile); err != nil {
			c.logger.WithError(err).Warn("failed to save history")
		}
	}
	return nil
}
