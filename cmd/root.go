// cmd/root.go

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smuckster/fleetcheck/pkg/checks"
	"github.com/smuckster/fleetcheck/pkg/publish"
)

var (
	noColors      bool
	onlyWarnings  bool
	hostsFile     string
	configFile    string
	parallel      int
	timeout       time.Duration
	outputFile    string
	metricsFile   string
	natsURL       string
	natsSubject   string
	verboseOutput bool

	logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	rootCmd = &cobra.Command{
		Use:   "fleetcheck",
		Short: "Fleet health check tool",
		Long: `A health check tool for a fleet of Linux web servers. It connects to each
host over SSH, checks the scheduled cron task, the TLS certificates served by
nginx or the free space on the data volume, and prints one line per finding.

Hosts come from an INI hosts file (-H) and ~/.ssh/config aliases; hosts named
on the command line are checked in the given order.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

// ProblemsFoundError is returned when a run completed but found CRITICAL
// findings or unreachable hosts
type ProblemsFoundError struct {
	Critical    int
	Unreachable int
}

func (e *ProblemsFoundError) Error() string {
	return fmt.Sprintf("%d host(s) critical, %d host(s) unreachable", e.Critical, e.Unreachable)
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

// Verbose reports whether --verbose was given
func Verbose() bool {
	return verboseOutput
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&noColors, "no-colors", false, "Do not colour the output (use when redirecting to a log file)")
	flags.BoolVar(&onlyWarnings, "only-warnings", false, "Print only WARNING, CRITICAL, INVALID and error lines")
	flags.StringVarP(&hostsFile, "hosts", "H", "hosts.ini", "Hosts configuration file")
	flags.StringVarP(&configFile, "config", "c", "", "YAML file with check thresholds and commands")
	flags.IntVarP(&parallel, "parallel", "p", 0, "Maximum number of hosts checked at once (default from hosts file, else 5)")
	flags.DurationVarP(&timeout, "timeout", "t", 0, "Timeout for the whole run, e.g. 10m (0 means none)")
	flags.StringVarP(&outputFile, "output", "o", "", "Write an AsciiDoc fleet report to this file")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this node_exporter textfile")
	flags.StringVar(&natsURL, "nats-url", "", "Publish per-host results to this NATS server")
	flags.StringVar(&natsSubject, "nats-subject", publish.DefaultSubject, "NATS subject prefix for published results")
	flags.BoolVarP(&verboseOutput, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(newCronCmd())
	rootCmd.AddCommand(newSSLCmd())
	rootCmd.AddCommand(newSpaceCmd())
}

// setup configures logging before any subcommand runs
func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if verboseOutput {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func checkFlags(expand bool) checks.Flags {
	return checks.Flags{
		NoColors:      noColors,
		OnlyWarnings:  onlyWarnings,
		ExpandVolumes: expand,
	}
}
