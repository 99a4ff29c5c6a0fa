package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smuckster/fleetcheck/pkg/checks"
	"github.com/smuckster/fleetcheck/pkg/remediate"
	"github.com/smuckster/fleetcheck/pkg/scan"
)

func spaceResults() []scan.HostResult {
	return []scan.HostResult{
		{
			Host:     "web1",
			Duration: 1500 * time.Millisecond,
			Findings: []checks.Finding{
				{Check: "space", Item: "/", Severity: checks.SeverityCritical,
					Fact: checks.DiskUsageFact{Mount: "/", PercentUsed: 100}},
				{Check: "space", Item: "/ (after expansion)", Severity: checks.SeverityOK,
					Fact: checks.DiskUsageFact{Mount: "/", PercentUsed: 67}},
			},
			Remediation: &remediate.State{VolumeID: "vol-1", Stage: remediate.StageDone},
		},
		{Host: "db1", Err: errors.New("connection refused")},
	}
}

func TestRecorder_Record(t *testing.T) {
	r := NewRecorder()
	finishedAt := time.Unix(1_790_000_000, 0)
	r.Record("space", spaceResults(), finishedAt)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.hostUp.WithLabelValues("space", "web1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.hostUp.WithLabelValues("space", "db1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.findingsGauge.WithLabelValues("space", "web1", "CRITICAL")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.findingsGauge.WithLabelValues("space", "web1", "WARNING")))
	assert.Equal(t, 67.0, testutil.ToFloat64(r.diskUsedGauge.WithLabelValues("web1", "/")))
	assert.Equal(t, 1.5, testutil.ToFloat64(r.durationGauge.WithLabelValues("space", "web1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.expandedGauge.WithLabelValues("web1")))
	assert.Equal(t, float64(finishedAt.Unix()), testutil.ToFloat64(r.lastRunTimestamp.WithLabelValues("space")))
}

func TestRecorder_CertificateExpiry(t *testing.T) {
	expiresAt := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRecorder()
	r.Record("ssl", []scan.HostResult{{
		Host: "web1",
		Findings: []checks.Finding{
			{Check: "ssl", Severity: checks.SeverityOK, Fact: checks.CertificateFact{Path: "/etc/ssl/a.pem", ExpiresAt: &expiresAt}},
			{Check: "ssl", Severity: checks.SeverityInvalid, Fact: checks.CertificateFact{Path: "/etc/ssl/b.pem"}},
		},
	}}, time.Now())

	assert.Equal(t, float64(expiresAt.Unix()), testutil.ToFloat64(r.certExpiryGauge.WithLabelValues("web1", "/etc/ssl/a.pem")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.certExpiryGauge))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Record("space", spaceResults(), time.Now())

	path := filepath.Join(t.TempDir(), "fleetcheck.prom")
	require.NoError(t, r.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `fleetcheck_host_up{check="space",host="db1"} 0`)
	assert.Contains(t, string(content), "# TYPE fleetcheck_findings gauge")
}

func TestRecorder_RegistryIsPrivate(t *testing.T) {
	first := NewRecorder()
	first.Record("space", spaceResults(), time.Now())
	second := NewRecorder()

	count, err := testutil.GatherAndCount(first.Registry(), "fleetcheck_host_up")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(second.Registry(), "fleetcheck_host_up")
	require.NoError(t, err)
	assert.Zero(t, count)
}
