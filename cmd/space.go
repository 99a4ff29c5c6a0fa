// cmd/space.go

package cmd

import (
	"github.com/spf13/cobra"
)

// newSpaceCmd creates the space subcommand
func newSpaceCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "space [hosts...]",
		Short: "Check the space left on the data volume",
		Long: `Prints the used, total and free space of the data volume of each host.
Usage over 90% or less than 5G free is a WARNING, a full disk is CRITICAL.

With --expand-vols, the EBS volume of every WARNING or CRITICAL host is grown
by 10G, the partition and filesystem are resized, and the host is checked
again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, "space", args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.expandVolumes, "expand-vols", false, "Expand the volume of hosts that are low on space")
	cmd.Flags().StringVar(&opts.awsRegion, "aws-region", "", "AWS region of the instances (default from the AWS configuration)")

	return cmd
}
