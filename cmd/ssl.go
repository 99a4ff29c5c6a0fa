// cmd/ssl.go

package cmd

import (
	"github.com/spf13/cobra"
)

// newSSLCmd creates the ssl subcommand
func newSSLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ssl [hosts...]",
		Short: "Check the expiry of every certificate nginx serves",
		Long: `Finds every ssl_certificate directive under the nginx configuration
directory of each host and reads the certificate's end date. Certificates
that expire within 31 days are reported as WARNING, expired ones as CRITICAL
and unreadable ones as INVALID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, "ssl", args, runOptions{})
		},
	}
}
