// pkg/scan/scanner.go

package scan

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smuckster/fleetcheck/pkg/checks"
	"github.com/smuckster/fleetcheck/pkg/config"
	"github.com/smuckster/fleetcheck/pkg/remediate"
	"github.com/smuckster/fleetcheck/pkg/utils"
)

// AfterExpansionSuffix marks findings from the check re-run after an expansion
const AfterExpansionSuffix = " (after expansion)"

// Remediator expands the volume of a host
type Remediator interface {
	Expand(ctx context.Context, exec utils.CommandExecutor, address string) (*remediate.State, error)
}

// HostResult is the outcome of scanning one host
type HostResult struct {
	Host           string
	Title          string
	Findings       []checks.Finding
	Err            error // connection or transport failure; Findings may be partial
	Remediation    *remediate.State
	RemediationErr error
	Duration       time.Duration
}

// Worst returns the most severe finding, or OK when there are none
func (r HostResult) Worst() checks.Severity {
	worst := checks.SeverityOK
	for _, finding := range r.Findings {
		if rank(finding.Severity) > rank(worst) {
			worst = finding.Severity
		}
	}
	return worst
}

func rank(s checks.Severity) int {
	switch s {
	case checks.SeverityCritical:
		return 3
	case checks.SeverityWarning:
		return 2
	case checks.SeverityInvalid:
		return 1
	default:
		return 0
	}
}

// Scanner runs one check kind across many hosts
type Scanner struct {
	Kind       checks.Kind
	Flags      checks.Flags
	Dial       DialFunc
	Remediator Remediator // nil disables expansion
	Parallel   int
	Logger     *slog.Logger

	// Progress, when set, is called once per host as it finishes
	Progress func(HostResult)
}

// Run scans every host and returns the results in input order. Hosts are
// scanned concurrently up to Parallel at a time. Hosts not yet started when
// ctx ends get ctx.Err() without being dialed.
func (s *Scanner) Run(ctx context.Context, hosts []config.HostEntry) []HostResult {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	parallel := s.Parallel
	if parallel <= 0 {
		parallel = 1
	}

	results := make([]HostResult, len(hosts))
	var g errgroup.Group
	g.SetLimit(parallel)

	for i, host := range hosts {
		g.Go(func() error {
			results[i] = s.scanHost(ctx, host, logger.With("host", host.Hostname))
			if s.Progress != nil {
				s.Progress(results[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Scanner) scanHost(ctx context.Context, host config.HostEntry, logger *slog.Logger) HostResult {
	start := time.Now()
	result := HostResult{Host: host.Hostname, Title: s.Kind.Title()}

	if err := ctx.Err(); err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	exec, err := s.Dial(ctx, host)
	if err != nil {
		logger.Debug("connection failed", "error", err)
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}
	defer func() {
		if err := exec.Close(); err != nil {
			logger.Debug("failed to close connection", "error", err)
		}
	}()

	findings, err := s.Kind.Inspect(ctx, exec)
	result.Findings = findings
	if err != nil {
		logger.Debug("check failed", "check", s.Kind.Name(), "error", err)
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	if s.shouldExpand(findings) {
		s.expand(ctx, exec, &result, logger)
	}

	result.Duration = time.Since(start)
	return result
}

func (s *Scanner) shouldExpand(findings []checks.Finding) bool {
	if !s.Flags.ExpandVolumes || s.Remediator == nil {
		return false
	}
	expandable, ok := s.Kind.(checks.Expandable)
	return ok && expandable.NeedsExpansion(findings)
}

func (s *Scanner) expand(ctx context.Context, exec utils.CommandExecutor, result *HostResult, logger *slog.Logger) {
	logger.Info("expanding volume")
	state, err := s.Remediator.Expand(ctx, exec, exec.Address())
	result.Remediation = state
	if err != nil {
		result.RemediationErr = err
		return
	}

	after, err := s.Kind.Inspect(ctx, exec)
	for _, finding := range after {
		finding.Item += AfterExpansionSuffix
		result.Findings = append(result.Findings, finding)
	}
	if err != nil {
		logger.Debug("re-check after expansion failed", "error", err)
		result.Err = err
	}
}
