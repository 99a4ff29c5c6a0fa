// pkg/metrics/metrics.go

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smuckster/fleetcheck/pkg/checks"
	"github.com/smuckster/fleetcheck/pkg/scan"
)

// Recorder holds the gauges of one run in a private registry
type Recorder struct {
	registry *prometheus.Registry

	hostUp           *prometheus.GaugeVec
	findingsGauge    *prometheus.GaugeVec
	diskUsedGauge    *prometheus.GaugeVec
	certExpiryGauge  *prometheus.GaugeVec
	durationGauge    *prometheus.GaugeVec
	expandedGauge    *prometheus.GaugeVec
	lastRunTimestamp *prometheus.GaugeVec
}

// NewRecorder creates a recorder with all gauges registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		hostUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetcheck_host_up",
			Help: "Whether the host could be reached and checked (1) or not (0)",
		}, []string{"check", "host"}),

		findingsGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetcheck_findings",
			Help: "Number of findings per host and severity",
		}, []string{"check", "host", "severity"}),

		diskUsedGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetcheck_disk_used_percent",
			Help: "Disk usage percentage of the checked filesystem",
		}, []string{"host", "mount"}),

		certExpiryGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetcheck_certificate_expiry_timestamp_seconds",
			Help: "Unix timestamp at which a certificate expires",
		}, []string{"host", "path"}),

		durationGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetcheck_host_duration_seconds",
			Help: "Time spent checking a host",
		}, []string{"check", "host"}),

		expandedGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetcheck_volume_expanded",
			Help: "Whether the host's volume was expanded during the run (1), failed to expand (-1) or was left alone (0)",
		}, []string{"host"}),

		lastRunTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetcheck_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed run",
		}, []string{"check"}),
	}

	r.registry.MustRegister(
		r.hostUp,
		r.findingsGauge,
		r.diskUsedGauge,
		r.certExpiryGauge,
		r.durationGauge,
		r.expandedGauge,
		r.lastRunTimestamp,
	)
	return r
}

// Registry returns the registry holding the gauges
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Record sets the gauges from the results of one run
func (r *Recorder) Record(check string, results []scan.HostResult, finishedAt time.Time) {
	for _, result := range results {
		up := 1.0
		if result.Err != nil {
			up = 0
		}
		r.hostUp.WithLabelValues(check, result.Host).Set(up)
		r.durationGauge.WithLabelValues(check, result.Host).Set(result.Duration.Seconds())

		counts := map[checks.Severity]int{}
		for _, finding := range result.Findings {
			counts[finding.Severity]++
			r.recordFact(result.Host, finding)
		}
		for _, severity := range []checks.Severity{checks.SeverityOK, checks.SeverityWarning, checks.SeverityCritical, checks.SeverityInvalid} {
			r.findingsGauge.WithLabelValues(check, result.Host, string(severity)).Set(float64(counts[severity]))
		}

		switch {
		case result.RemediationErr != nil:
			r.expandedGauge.WithLabelValues(result.Host).Set(-1)
		case result.Remediation != nil:
			r.expandedGauge.WithLabelValues(result.Host).Set(1)
		}
	}
	r.lastRunTimestamp.WithLabelValues(check).Set(float64(finishedAt.Unix()))
}

// recordFact exports the numeric part of a typed fact. Later findings for the
// same label set overwrite earlier ones, so the post-expansion usage wins.
func (r *Recorder) recordFact(host string, finding checks.Finding) {
	switch fact := finding.Fact.(type) {
	case checks.DiskUsageFact:
		r.diskUsedGauge.WithLabelValues(host, fact.Mount).Set(float64(fact.PercentUsed))
	case checks.CertificateFact:
		if fact.ExpiresAt != nil {
			r.certExpiryGauge.WithLabelValues(host, fact.Path).Set(float64(fact.ExpiresAt.Unix()))
		}
	}
}

// WriteTextfile writes the gauges in the node_exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
