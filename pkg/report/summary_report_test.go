package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexmullins/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smuckster/fleetcheck/pkg/checks"
	"github.com/smuckster/fleetcheck/pkg/remediate"
	"github.com/smuckster/fleetcheck/pkg/scan"
)

func fleetResults() []scan.HostResult {
	return []scan.HostResult{
		{Host: "web1", Title: "Space Usage", Duration: 120 * time.Millisecond, Findings: []checks.Finding{
			{Check: "space", Item: "/", Severity: checks.SeverityOK, Message: "10G/30G used, 20G left (34%)"},
		}},
		{Host: "web2", Title: "Space Usage", Findings: []checks.Finding{
			{Check: "space", Item: "/", Severity: checks.SeverityWarning, Message: "19G/20G used, 1G left (95%) Space may run out soon."},
		}},
		{Host: "web3", Title: "Space Usage", Findings: []checks.Finding{
			{Check: "space", Item: "/", Severity: checks.SeverityCritical, Message: "20G/20G used, 0 left (100%) Out of space!"},
			{Check: "space", Item: "/ (after expansion)", Severity: checks.SeverityOK, Message: "20G/30G used, 10G left (67%)"},
		}, Remediation: &remediate.State{VolumeID: "vol-3", CurrentSizeGB: 20, TargetSizeGB: 30, Stage: remediate.StageDone}},
		{Host: "db1", Title: "Space Usage", Err: errors.New("connection refused")},
	}
}

func TestSummary(t *testing.T) {
	summary := NewSummary("space", fleetResults())

	assert.Equal(t, 4, summary.TotalHosts)
	assert.Equal(t, 1, summary.CriticalHostCount)
	assert.Equal(t, 1, summary.WarningHostCount)
	assert.Equal(t, 1, summary.HealthyHostCount)
	assert.Equal(t, 1, summary.UnreachableCount)
	assert.Equal(t, 1, summary.ExpandedCount)
	assert.Equal(t, 2, summary.Findings[checks.SeverityOK])
	assert.Equal(t, ExitProblems, summary.ExitCode())

	var buf bytes.Buffer
	require.NoError(t, summary.Write(&buf))
	assert.Contains(t, buf.String(), "Total Hosts: 4 | Critical: 1 | Warnings: 1 | Healthy: 1 | Unreachable: 1")
	assert.Contains(t, buf.String(), "Volumes expanded: 1")
}

func TestSummary_ExitCode(t *testing.T) {
	results := fleetResults()

	assert.Equal(t, ExitHealthy, NewSummary("space", results[:2]).ExitCode())
	assert.Equal(t, ExitProblems, NewSummary("space", results[2:3]).ExitCode())
	assert.Equal(t, ExitProblems, NewSummary("space", results[3:]).ExitCode())
	assert.Equal(t, ExitHealthy, NewSummary("space", nil).ExitCode())
}

func TestAsciiDocReport_Generate(t *testing.T) {
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "reports", "space.adoc")
	results := fleetResults()

	report := NewAsciiDocReport(outputPath, "run-1", NewSummary("space", results), results)
	path, err := report.Generate()
	require.NoError(t, err)
	assert.Equal(t, outputPath, path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "= Fleet Health Check: space")
	assert.Contains(t, text, "Run: run-1")
	assert.Contains(t, text, "== Critical Issues")
	assert.Contains(t, text, "* *web3* `/`: 20G/20G used, 0 left (100%) Out of space!")
	assert.Contains(t, text, "* *db1*: connection failed: connection refused")
	assert.Contains(t, text, "Volume expanded from 20G to 30G")
	assert.Contains(t, text, "{set:cellbgcolor:#FF0000}Unreachable")

	data, err := LoadResults(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "run-1", data.RunID)
	assert.Equal(t, "space", data.Check)
	require.Len(t, data.Hosts, 4)
	assert.Equal(t, "web1", data.Hosts[0].Hostname)
	assert.Equal(t, int64(120), data.Hosts[0].DurationMS)
	assert.Equal(t, "connection refused", data.Hosts[3].Error)
	require.NotNil(t, data.Hosts[2].Remediation)
	assert.Equal(t, "done", data.Hosts[2].Remediation.Stage)
	assert.Equal(t, "CRITICAL", data.Hosts[2].Findings[0].Severity)
}

func TestGenerateCriticalSection_NoIssues(t *testing.T) {
	results := fleetResults()[:2]
	report := NewAsciiDocReport("unused.adoc", "run-2", NewSummary("space", results), results)
	assert.Contains(t, report.generateCriticalSection(), "No critical issues found.")
}

func TestCompressIfRequested(t *testing.T) {
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "space.adoc")
	require.NoError(t, os.WriteFile(reportPath, []byte("= Report\n"), 0644))

	t.Setenv("COMPRESS_REPORT", "")
	path, err := CompressIfRequested(reportPath)
	require.NoError(t, err)
	assert.Equal(t, reportPath, path)

	t.Setenv("COMPRESS_REPORT", "true")
	t.Setenv("REPORT_PASSWORD", "")
	_, err = CompressIfRequested(reportPath)
	assert.Error(t, err)

	t.Setenv("REPORT_PASSWORD", "s3cret")
	t.Setenv("REMOVE_UNCOMPRESSED", "true")
	path, err = CompressIfRequested(reportPath)
	require.NoError(t, err)
	assert.NotEqual(t, reportPath, path)
	assert.NoFileExists(t, reportPath)

	archive, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer archive.Close()
	require.Len(t, archive.File, 1)
	assert.True(t, archive.File[0].IsEncrypted())
}
