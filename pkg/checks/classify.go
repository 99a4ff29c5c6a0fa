// pkg/checks/classify.go

package checks

import (
	"fmt"
	"time"

	"github.com/smuckster/fleetcheck/pkg/config"
)

const (
	// DefaultCertificateWarnWindow is how long before expiry a certificate is flagged
	DefaultCertificateWarnWindow = 31 * 24 * time.Hour

	// DefaultDiskCriticalPercent is the usage at which a volume is out of space
	DefaultDiskCriticalPercent = 100

	// DefaultDiskWarnPercent is the usage a volume must exceed to be flagged
	DefaultDiskWarnPercent = 90

	// DefaultDiskMinFreeGB is the free space a volume must stay above
	DefaultDiskMinFreeGB = 5.0
)

// Thresholds parameterize the classifiers
type Thresholds struct {
	CertificateWarnWindow time.Duration
	DiskCriticalPercent   int
	DiskWarnPercent       int
	DiskMinFreeGB         float64
}

// DefaultThresholds returns the built-in thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		CertificateWarnWindow: DefaultCertificateWarnWindow,
		DiskCriticalPercent:   DefaultDiskCriticalPercent,
		DiskWarnPercent:       DefaultDiskWarnPercent,
		DiskMinFreeGB:         DefaultDiskMinFreeGB,
	}
}

// ThresholdsFromConfig converts the check configuration into thresholds
func ThresholdsFromConfig(cfg config.CheckConfig) Thresholds {
	return Thresholds{
		CertificateWarnWindow: time.Duration(cfg.SSL.WarnDays) * 24 * time.Hour,
		DiskCriticalPercent:   cfg.Space.CriticalPercent,
		DiskWarnPercent:       cfg.Space.WarnPercent,
		DiskMinFreeGB:         cfg.Space.MinFreeGB,
	}
}

// ClassifyCron maps the cron presence fact to a severity
func ClassifyCron(fact CronFact) Severity {
	if !fact.Present {
		return SeverityWarning
	}
	return SeverityOK
}

// ClassifyCertificate maps a certificate fact to a severity at time now
func ClassifyCertificate(fact CertificateFact, now time.Time, t Thresholds) Severity {
	if fact.ExpiresAt == nil {
		return SeverityInvalid
	}
	expiry := *fact.ExpiresAt
	switch {
	case now.After(expiry):
		return SeverityCritical
	case now.After(expiry.Add(-t.CertificateWarnWindow)):
		return SeverityWarning
	default:
		return SeverityOK
	}
}

// ClassifyDisk maps a disk usage fact to a severity. Out of space takes
// precedence over the usage and free space warnings.
func ClassifyDisk(fact DiskUsageFact, t Thresholds) Severity {
	switch {
	case fact.PercentUsed >= t.DiskCriticalPercent:
		return SeverityCritical
	case fact.PercentUsed > t.DiskWarnPercent || fact.FreeGB < t.DiskMinFreeGB:
		return SeverityWarning
	default:
		return SeverityOK
	}
}

func cronMessage(severity Severity) string {
	if severity == SeverityOK {
		return "Cron is set up."
	}
	return "Cron is not set up!!"
}

func certificateMessage(fact CertificateFact, severity Severity) string {
	switch severity {
	case SeverityInvalid:
		return "Certificate is not valid."
	case SeverityCritical:
		return "Certificate expired! Expiration date: " + fact.Raw
	case SeverityWarning:
		return "Certificate expires soon! Expiration date: " + fact.Raw
	default:
		return "Certificate expires " + fact.Raw
	}
}

func diskMessage(fact DiskUsageFact, severity Severity) string {
	usage := fmt.Sprintf("%s/%s used, %s left (%d%%)", fact.Used, fact.Total, fact.Free, fact.PercentUsed)
	switch severity {
	case SeverityCritical:
		return usage + " Out of space!"
	case SeverityWarning:
		return usage + " Space may run out soon."
	default:
		return usage
	}
}
