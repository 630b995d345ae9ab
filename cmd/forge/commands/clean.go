package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/forge/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Reclaim or remove the blob store and action cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			maxBytes, _ := cmd.Flags().GetInt64("max-bytes")
			maxAge, _ := cmd.Flags().GetDuration("max-age")

			return c.app.Clean(cmd.Context(), app.CleanOptions{
				All:      all,
				MaxBytes: maxBytes,
				MaxAge:   maxAge,
			})
		},
	}

	cmd.Flags().BoolP("all", "a", false, "Remove the entire store instead of reclaiming")
	cmd.Flags().Int64("max-bytes", 0, "Reclaim the action cache down to this size (0 = unbounded)")
	cmd.Flags().Duration("max-age", 0, "Drop action cache entries older than this (0 = unbounded)")

	return cmd
}
