// cmd/run.go

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/smuckster/fleetcheck/pkg/checks"
	"github.com/smuckster/fleetcheck/pkg/cloud"
	"github.com/smuckster/fleetcheck/pkg/config"
	"github.com/smuckster/fleetcheck/pkg/metrics"
	"github.com/smuckster/fleetcheck/pkg/publish"
	"github.com/smuckster/fleetcheck/pkg/remediate"
	"github.com/smuckster/fleetcheck/pkg/report"
	"github.com/smuckster/fleetcheck/pkg/scan"
)

type runOptions struct {
	expandVolumes bool
	awsRegion     string
}

// runCheck runs one check kind across the selected hosts
func runCheck(cmd *cobra.Command, kindName string, args []string, opts runOptions) error {
	checkConfig, err := loadCheckConfig(opts)
	if err != nil {
		return err
	}

	registry, err := loadRegistry(cmd)
	if err != nil {
		return err
	}

	hosts, err := scan.ResolveHosts(registry, args)
	if err != nil {
		return fmt.Errorf("%w (name hosts on the command line or add them to %s)", err, hostsFile)
	}

	kind, err := checks.NewKind(kindName, checkConfig, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	flags := checkFlags(opts.expandVolumes)
	scanner := &scan.Scanner{
		Kind:     kind,
		Flags:    flags,
		Dial:     scan.NewDialer(registry.Defaults, logger),
		Parallel: parallelism(registry),
		Logger:   logger,
	}

	if opts.expandVolumes {
		provider, err := cloud.NewEC2Provider(ctx, checkConfig.Space.Expand.Region, logger)
		if err != nil {
			return err
		}
		scanner.Remediator = remediate.NewDriver(provider, remediate.OptionsFromConfig(checkConfig.Space), logger)
	}

	runID := uuid.NewString()
	logger.Info("starting run", "run_id", runID, "check", kindName, "hosts", len(hosts), "parallel", scanner.Parallel)

	bar := newProgressBar(len(hosts), kind.Title())
	if bar != nil {
		scanner.Progress = func(scan.HostResult) { _ = bar.Add(1) }
	}

	results := scanner.Run(ctx, hosts)
	if bar != nil {
		_ = bar.Finish()
	}

	if err := report.NewLineReporter(cmd.OutOrStdout(), flags).WriteResults(results); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	summary := report.NewSummary(kindName, results)
	if verboseOutput {
		_ = summary.Write(cmd.ErrOrStderr())
	}

	if err := writeOutputs(kindName, runID, summary, results); err != nil {
		return err
	}

	if summary.ExitCode() != report.ExitHealthy {
		return &ProblemsFoundError{Critical: summary.CriticalHostCount, Unreachable: summary.UnreachableCount}
	}
	return nil
}

func loadCheckConfig(opts runOptions) (config.CheckConfig, error) {
	checkConfig := config.DefaultCheckConfig()
	if configFile != "" {
		loaded, err := config.LoadCheckConfig(configFile)
		if err != nil {
			return checkConfig, err
		}
		checkConfig = loaded
	}
	if opts.awsRegion != "" {
		checkConfig.Space.Expand.Region = opts.awsRegion
	}
	return checkConfig, nil
}

// loadRegistry reads ~/.ssh/config and the hosts file. The default hosts
// file may be absent when hosts are named on the command line.
func loadRegistry(cmd *cobra.Command) (*config.HostsConfig, error) {
	registry := config.NewHostsConfig()

	if err := registry.LoadSSHConfig("~/.ssh/config"); err != nil {
		logger.Warn("ignoring ssh config", "error", err)
	}

	if err := registry.LoadFromFile(hostsFile); err != nil {
		if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("hosts") {
			logger.Debug("no hosts file", "path", hostsFile)
			return registry, nil
		}
		return nil, fmt.Errorf("failed to load hosts file: %w", err)
	}
	return registry, nil
}

func parallelism(registry *config.HostsConfig) int {
	if parallel > 0 {
		return parallel
	}
	if registry.Defaults.ParallelConnections > 0 {
		return registry.Defaults.ParallelConnections
	}
	return 5
}

// newProgressBar returns a bar on stderr, or nil when stderr is not a
// terminal or debug logs are being written there
func newProgressBar(total int, title string) *progressbar.ProgressBar {
	if verboseOutput || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(!noColors),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]Checking hosts (%s)[reset]", title)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// writeOutputs writes the optional report, metrics and NATS outputs
func writeOutputs(check, runID string, summary *report.Summary, results []scan.HostResult) error {
	var errs []error

	if outputFile != "" {
		path, err := report.NewAsciiDocReport(outputFile, runID, summary, results).Generate()
		if err == nil {
			path, err = report.CompressIfRequested(path)
		}
		if err != nil {
			errs = append(errs, err)
		} else {
			logger.Info("report written", "path", path)
		}
	}

	if metricsFile != "" {
		recorder := metrics.NewRecorder()
		recorder.Record(check, results, time.Now())
		if err := recorder.WriteTextfile(metricsFile); err != nil {
			errs = append(errs, err)
		}
	}

	if natsURL != "" {
		publisher, err := publish.Connect(natsURL, natsSubject, runID, logger)
		if err != nil {
			errs = append(errs, err)
		} else {
			if err := publisher.PublishResults(check, results); err != nil {
				errs = append(errs, err)
			}
			publisher.Close()
		}
	}

	return errors.Join(errs...)
}
