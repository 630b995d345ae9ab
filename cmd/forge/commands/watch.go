package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <command>",
		Short: "Run a command and re-run it when its inputs change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := c.app.Watch(cmd.Context(), args[0])
			if errors.Is(err, context.Canceled) {
				// Interrupting a watch is a clean exit.
				return nil
			}
			return err
		},
	}
}
