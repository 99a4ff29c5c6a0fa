// pkg/report/asciidoc_report.go

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smuckster/fleetcheck/pkg/checks"
	"github.com/smuckster/fleetcheck/pkg/scan"
	"github.com/smuckster/fleetcheck/pkg/utils"
)

// ResultKey represents the level of importance for a result in a report summary
type ResultKey string

const (
	// ResultKeyNoChange indicates no changes are needed
	ResultKeyNoChange ResultKey = "nochange"

	// ResultKeyRecommended indicates changes are recommended
	ResultKeyRecommended ResultKey = "recommended"

	// ResultKeyRequired indicates changes are required
	ResultKeyRequired ResultKey = "required"

	// ResultKeyAdvisory indicates additional information
	ResultKeyAdvisory ResultKey = "advisory"

	// ResultKeyEvaluate indicates the result needs evaluation
	ResultKeyEvaluate ResultKey = "eval"
)

// ResultKeyFor maps a severity to its report colour key
func ResultKeyFor(severity checks.Severity) ResultKey {
	switch severity {
	case checks.SeverityCritical:
		return ResultKeyRequired
	case checks.SeverityWarning:
		return ResultKeyRecommended
	case checks.SeverityInvalid:
		return ResultKeyEvaluate
	default:
		return ResultKeyNoChange
	}
}

// AsciiDocReport generates the fleet report of one run
type AsciiDocReport struct {
	// OutputPath is where the report will be saved
	OutputPath string

	// Title is the title of the report
	Title string

	RunID   string
	Summary *Summary
	Results []scan.HostResult
}

// NewAsciiDocReport creates a new AsciiDoc report
func NewAsciiDocReport(outputPath, runID string, summary *Summary, results []scan.HostResult) *AsciiDocReport {
	return &AsciiDocReport{
		OutputPath: outputPath,
		Title:      fmt.Sprintf("Fleet Health Check: %s", summary.Check),
		RunID:      runID,
		Summary:    summary,
		Results:    results,
	}
}

// Generate writes the report and its JSON sidecar and returns the report path
func (r *AsciiDocReport) Generate() (string, error) {
	outputDir := filepath.Dir(r.OutputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(r.OutputPath, []byte(r.generateReportContent()), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	if err := SaveResults(r.OutputPath, r.RunID, r.Summary.Check, r.Results); err != nil {
		return "", err
	}

	return r.OutputPath, nil
}

// generateReportContent creates the full report content
func (r *AsciiDocReport) generateReportContent() string {
	var sb strings.Builder
	s := r.Summary

	sb.WriteString(fmt.Sprintf("= %s\n", r.Title))
	sb.WriteString(fmt.Sprintf("Generated: %s | Run: %s\n", s.GeneratedTime.Format("2006-01-02 15:04:05"), r.RunID))
	sb.WriteString(fmt.Sprintf("Total Hosts: %d | Critical: %d | Warnings: %d | Healthy: %d | Unreachable: %d\n\n",
		s.TotalHosts, s.CriticalHostCount, s.WarningHostCount, s.HealthyHostCount, s.UnreachableCount))

	sb.WriteString(generateKeySection())
	sb.WriteString(r.generateSummarySection())
	sb.WriteString(r.generateCriticalSection())
	sb.WriteString(r.generateHealthMatrix())

	// Reset bgcolor for future tables
	sb.WriteString("// Reset bgcolor for future tables\n[grid=none,frame=none]\n|===\n|{set:cellbgcolor!}\n|===\n\n")

	return sb.String()
}

// generateKeySection creates the color-coded key section
func generateKeySection() string {
	var sb strings.Builder

	sb.WriteString("== Key\n\n")
	sb.WriteString("[cols=\"1,3\", options=header]\n|===\n|Value\n|Description\n\n")

	sb.WriteString("|\n{set:cellbgcolor:#FF0000}\nChanges Required\n|\n{set:cellbgcolor!}\n")
	sb.WriteString("CRITICAL finding or unreachable host. Act now.\n\n")

	sb.WriteString("|\n{set:cellbgcolor:#FEFE20}\nChanges Recommended\n|\n{set:cellbgcolor!}\n")
	sb.WriteString("WARNING finding. Plan to address soon.\n\n")

	sb.WriteString("|\n{set:cellbgcolor:#80E5FF}\nAdvisory\n|\n{set:cellbgcolor!}\n")
	sb.WriteString("Volume expanded during this run.\n\n")

	sb.WriteString("|\n{set:cellbgcolor:#00FF00}\nNo Change\n|\n{set:cellbgcolor!}\n")
	sb.WriteString("No change required.\n\n")

	sb.WriteString("|\n{set:cellbgcolor:#FFFFFF}\nTo Be Evaluated\n|\n{set:cellbgcolor!}\n")
	sb.WriteString("INVALID finding. The fact could not be read.\n|===\n\n")

	return sb.String()
}

// generateSummarySection lists every finding of every host
func (r *AsciiDocReport) generateSummarySection() string {
	var sb strings.Builder

	sb.WriteString("== Summary\n\n")
	sb.WriteString("[cols=\"2,2,3,2\", options=header]\n|===\n|*Host*\n|*Item Evaluated*\n|*Observed Result*\n|*Recommendation*\n\n")

	for _, result := range r.Results {
		for _, finding := range result.Findings {
			writeRow(&sb, result.Host, finding.Item, finding.Message, ResultKeyFor(finding.Severity))
		}
		if result.Remediation != nil && result.RemediationErr == nil {
			writeRow(&sb, result.Host, result.Remediation.VolumeID,
				fmt.Sprintf("Volume expanded from %dG to %dG", result.Remediation.CurrentSizeGB, result.Remediation.TargetSizeGB),
				ResultKeyAdvisory)
		}
		if result.RemediationErr != nil {
			writeRow(&sb, result.Host, "", "Volume expansion failed: "+result.RemediationErr.Error(), ResultKeyRequired)
		}
		if result.Err != nil {
			writeRow(&sb, result.Host, "", "Connection failed: "+result.Err.Error(), ResultKeyRequired)
		}
	}

	sb.WriteString("|===\n\n")
	sb.WriteString("{set:cellbgcolor!}\n\n")

	return sb.String()
}

func writeRow(sb *strings.Builder, host, item, message string, key ResultKey) {
	sb.WriteString("|\n{set:cellbgcolor!}\n" + host + "\n\n")
	sb.WriteString("| " + escapeCell(item) + " \n\n")
	sb.WriteString("| " + escapeCell(message) + " \n\n")
	sb.WriteString(getResultFormatting(key) + "\n\n")
}

// generateCriticalSection lists the hosts that need immediate attention
func (r *AsciiDocReport) generateCriticalSection() string {
	var sb strings.Builder

	sb.WriteString("== Critical Issues\n\n")

	count := 0
	for _, result := range r.Results {
		if result.Err != nil {
			sb.WriteString(fmt.Sprintf("* *%s*: connection failed: %s\n", result.Host, escapeCell(result.Err.Error())))
			count++
		}
		for _, finding := range result.Findings {
			if finding.Severity != checks.SeverityCritical {
				continue
			}
			item := finding.Item
			if item != "" {
				item = " `" + item + "`"
			}
			sb.WriteString(fmt.Sprintf("* *%s*%s: %s\n", result.Host, item, escapeCell(finding.Message)))
			count++
		}
	}

	if count == 0 {
		sb.WriteString("No critical issues found. All systems are operating within acceptable parameters.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// generateHealthMatrix creates the host health matrix
func (r *AsciiDocReport) generateHealthMatrix() string {
	var sb strings.Builder

	sb.WriteString("== Host Health Matrix\n\n")
	sb.WriteString("[cols=\"3,1,1,1,1,2\", options=header]\n|===\n")
	sb.WriteString("|Host |Critical |Warning |Invalid |Duration |Status\n\n")

	for _, result := range r.Results {
		counts := make(map[checks.Severity]int)
		for _, finding := range result.Findings {
			counts[finding.Severity]++
		}

		healthColor := "#00FF00" // Green - Healthy
		healthStatus := "Healthy"
		switch worst := result.Worst(); {
		case result.Err != nil:
			healthColor = "#FF0000"
			healthStatus = "Unreachable"
		case worst == checks.SeverityCritical:
			healthColor = "#FF0000"
			healthStatus = "Critical"
		case worst.IsProblem():
			healthColor = "#FEFE20"
			healthStatus = "Warning"
		}

		sb.WriteString(fmt.Sprintf("|%s |%d |%d |%d |%s |{set:cellbgcolor:%s}%s\n",
			result.Host, counts[checks.SeverityCritical], counts[checks.SeverityWarning],
			counts[checks.SeverityInvalid], result.Duration.Round(time.Millisecond),
			healthColor, healthStatus))
	}

	sb.WriteString("|===\n\n")
	sb.WriteString("{set:cellbgcolor!}\n\n")

	return sb.String()
}

// getResultFormatting returns formatted AsciiDoc for a result key (used in tables)
func getResultFormatting(resultKey ResultKey) string {
	options := map[ResultKey]string{
		ResultKeyRequired: `| 
{set:cellbgcolor:#FF0000}
Changes Required`,
		ResultKeyRecommended: `| 
{set:cellbgcolor:#FEFE20}
Changes Recommended`,
		ResultKeyNoChange: `| 
{set:cellbgcolor:#00FF00}
No Change`,
		ResultKeyAdvisory: `| 
{set:cellbgcolor:#80E5FF}
Advisory`,
		ResultKeyEvaluate: `| 
{set:cellbgcolor:#FFFFFF}
To Be Evaluated`,
	}

	result, ok := options[resultKey]
	if !ok {
		return options[ResultKeyEvaluate]
	}
	return result
}

// escapeCell keeps table separators in messages from breaking the table
func escapeCell(text string) string {
	return strings.ReplaceAll(text, "|", "\\|")
}

// CompressIfRequested zips the report with a password when COMPRESS_REPORT
// is set. It returns the path of the file to hand out.
func CompressIfRequested(reportPath string) (string, error) {
	compress := os.Getenv("COMPRESS_REPORT")
	if compress != "true" && compress != "1" {
		return reportPath, nil
	}

	password := os.Getenv("REPORT_PASSWORD")
	if password == "" {
		return reportPath, fmt.Errorf("COMPRESS_REPORT is set but REPORT_PASSWORD is empty")
	}

	compressedPath, err := utils.CompressWithPassword(reportPath, password)
	if err != nil {
		return reportPath, fmt.Errorf("failed to compress report: %w", err)
	}

	if os.Getenv("REMOVE_UNCOMPRESSED") == "true" {
		if err := os.Remove(reportPath); err != nil {
			return compressedPath, fmt.Errorf("failed to remove uncompressed report: %w", err)
		}
	}

	return compressedPath, nil
}
