package commands

import (
	"github.com/spf13/cobra"
)

// DefaultServeAddr is the address the remote execution service binds to when
// no --addr flag is given.
const DefaultServeAddr = "127.0.0.1:8980"

func (c *CLI) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the remote execution service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return c.app.Serve(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringP("addr", "a", DefaultServeAddr, "Address to listen on")
	return cmd
}
