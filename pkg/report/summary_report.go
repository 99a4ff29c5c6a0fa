// pkg/report/summary_report.go

package report

import (
	"fmt"
	"io"
	"time"

	"github.com/smuckster/fleetcheck/pkg/checks"
	"github.com/smuckster/fleetcheck/pkg/scan"
)

// Exit statuses of a run
const (
	ExitHealthy  = 0
	ExitUsage    = 1
	ExitProblems = 2
)

// Summary counts hosts by their worst result and findings by severity
type Summary struct {
	GeneratedTime     time.Time
	Check             string
	TotalHosts        int
	CriticalHostCount int // hosts with at least one CRITICAL finding
	WarningHostCount  int // hosts whose worst finding is WARNING or INVALID
	HealthyHostCount  int // hosts with only OK findings
	UnreachableCount  int // hosts that failed with a connection error
	ExpandedCount     int
	ExpansionFailures int
	Findings          map[checks.Severity]int
}

// NewSummary analyzes the results of one run
func NewSummary(check string, results []scan.HostResult) *Summary {
	s := &Summary{
		GeneratedTime: time.Now(),
		Check:         check,
		TotalHosts:    len(results),
		Findings:      make(map[checks.Severity]int),
	}

	for _, result := range results {
		for _, finding := range result.Findings {
			s.Findings[finding.Severity]++
		}

		if result.RemediationErr != nil {
			s.ExpansionFailures++
		} else if result.Remediation != nil {
			s.ExpandedCount++
		}

		// Categorize host based on its worst issue
		switch {
		case result.Err != nil:
			s.UnreachableCount++
		case result.Worst() == checks.SeverityCritical:
			s.CriticalHostCount++
		case result.Worst().IsProblem():
			s.WarningHostCount++
		default:
			s.HealthyHostCount++
		}
	}
	return s
}

// ExitCode returns ExitProblems when any host had a CRITICAL finding or
// could not be checked, and ExitHealthy otherwise
func (s *Summary) ExitCode() int {
	if s.CriticalHostCount > 0 || s.UnreachableCount > 0 || s.Findings[checks.SeverityCritical] > 0 {
		return ExitProblems
	}
	return ExitHealthy
}

// Write prints the summary block
func (s *Summary) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"\n%s check summary (%s)\nTotal Hosts: %d | Critical: %d | Warnings: %d | Healthy: %d | Unreachable: %d\nFindings: %d OK, %d WARNING, %d CRITICAL, %d INVALID\n",
		s.Check, s.GeneratedTime.Format("2006-01-02 15:04:05"),
		s.TotalHosts, s.CriticalHostCount, s.WarningHostCount, s.HealthyHostCount, s.UnreachableCount,
		s.Findings[checks.SeverityOK], s.Findings[checks.SeverityWarning],
		s.Findings[checks.SeverityCritical], s.Findings[checks.SeverityInvalid])
	if err != nil {
		return err
	}
	if s.ExpandedCount > 0 || s.ExpansionFailures > 0 {
		_, err = fmt.Fprintf(w, "Volumes expanded: %d | Expansion failures: %d\n", s.ExpandedCount, s.ExpansionFailures)
	}
	return err
}
