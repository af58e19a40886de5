// Package cli implements the partmirror command line: a standalone queue
// worker and a local relay for replaying notification archives.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command for the partmirror CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "partmirror",
		Short: "Cross-partition object replication",
		Long:  "Replicates bucket objects, deletes and tags across a cloud partition boundary.",
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewWorkerCommand(opts))
	cmd.AddCommand(NewRelayCommand(opts))

	return cmd
}
