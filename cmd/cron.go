// cmd/cron.go

package cmd

import (
	"github.com/spf13/cobra"
)

// newCronCmd creates the cron subcommand
func newCronCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cron [hosts...]",
		Short: "Check that the scheduled task is in root's crontab",
		Long: `Checks each host's root crontab for the configured pattern (cron.php by
default). A missing entry, or a host where the crontab cannot be read, is
reported as a WARNING.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, "cron", args, runOptions{})
		},
	}
}
