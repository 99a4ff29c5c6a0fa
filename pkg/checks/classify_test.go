package checks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCertificate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}
	day := 24 * time.Hour

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      Severity
	}{
		{"expires in 40 days", at(40 * day), SeverityOK},
		{"expires in 10 days", at(10 * day), SeverityWarning},
		{"expired yesterday", at(-day), SeverityCritical},
		{"no end date", nil, SeverityInvalid},
		{"exactly at the warning boundary", at(31 * day), SeverityOK},
		{"just inside the warning window", at(31*day - time.Second), SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fact := CertificateFact{Path: "/etc/ssl/site.pem", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, ClassifyCertificate(fact, now, DefaultThresholds()))
		})
	}
}

func TestClassifyCertificate_CustomWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expiry := now.Add(10 * 24 * time.Hour)
	thresholds := DefaultThresholds()
	thresholds.CertificateWarnWindow = 7 * 24 * time.Hour

	assert.Equal(t, SeverityOK, ClassifyCertificate(CertificateFact{ExpiresAt: &expiry}, now, thresholds))
}

func TestClassifyDisk(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		freeGB  float64
		want    Severity
	}{
		{"full disk with free space left over", 100, 50, SeverityCritical},
		{"full disk with no free space", 100, 0, SeverityCritical},
		{"usage over threshold", 91, 20, SeverityWarning},
		{"low free space", 50, 3, SeverityWarning},
		{"at the usage threshold", 90, 20, SeverityOK},
		{"healthy", 50, 20, SeverityOK},
		{"exactly the minimum free space", 50, 5, SeverityOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fact := DiskUsageFact{PercentUsed: tt.percent, FreeGB: tt.freeGB}
			assert.Equal(t, tt.want, ClassifyDisk(fact, DefaultThresholds()))
		})
	}
}

func TestClassifyDisk_CustomThresholds(t *testing.T) {
	thresholds := Thresholds{DiskCriticalPercent: 95, DiskWarnPercent: 80, DiskMinFreeGB: 1}

	assert.Equal(t, SeverityCritical, ClassifyDisk(DiskUsageFact{PercentUsed: 96, FreeGB: 30}, thresholds))
	assert.Equal(t, SeverityWarning, ClassifyDisk(DiskUsageFact{PercentUsed: 81, FreeGB: 30}, thresholds))
	assert.Equal(t, SeverityOK, ClassifyDisk(DiskUsageFact{PercentUsed: 50, FreeGB: 2}, thresholds))
}

func TestClassifyCron(t *testing.T) {
	assert.Equal(t, SeverityOK, ClassifyCron(CronFact{Present: true}))
	assert.Equal(t, SeverityWarning, ClassifyCron(CronFact{Present: false}))
}

func TestSeverity_IsProblem(t *testing.T) {
	assert.False(t, SeverityOK.IsProblem())
	assert.True(t, SeverityWarning.IsProblem())
	assert.True(t, SeverityCritical.IsProblem())
	assert.True(t, SeverityInvalid.IsProblem())
}
