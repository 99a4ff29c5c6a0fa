// pkg/checks/checks.go

package checks

/*
This package holds the check kinds run against every host.

Available checks:
- cron (cron.go)   - CronCheck: is the scheduled task present in root's crontab
- ssl (ssl.go)     - CertificateCheck: expiry of every certificate nginx serves
- space (space.go) - DiskSpaceCheck: usage of the primary data volume

Each kind extracts typed facts over a utils.CommandExecutor and classifies
them with the pure functions in classify.go.
*/

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smuckster/fleetcheck/pkg/config"
	"github.com/smuckster/fleetcheck/pkg/utils"
)

// Severity is the classification of a single fact
type Severity string

const (
	SeverityOK       Severity = "OK"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
	SeverityInvalid  Severity = "INVALID"
)

// IsProblem reports whether the severity should survive a warnings-only filter
func (s Severity) IsProblem() bool {
	return s != SeverityOK
}

// Flags are the per-invocation switches shared by all checks
type Flags struct {
	NoColors      bool
	OnlyWarnings  bool
	ExpandVolumes bool
}

// Finding is one classified fact, rendered as one report line
type Finding struct {
	Check    string
	Item     string // certificate path, mount point, or empty
	Severity Severity
	Message  string
	Fact     any
}

// Kind is a check type: it extracts facts from a host and classifies them.
// Inspect returns an error only for transport failures; facts that cannot be
// parsed come back as INVALID findings.
type Kind interface {
	Name() string
	Title() string
	Inspect(ctx context.Context, exec utils.CommandExecutor) ([]Finding, error)
}

// Expandable is implemented by kinds whose findings can trigger a volume expansion
type Expandable interface {
	NeedsExpansion(findings []Finding) bool
}

// NewKind builds the check kind registered under name
func NewKind(name string, cfg config.CheckConfig, logger *slog.Logger) (Kind, error) {
	if logger == nil {
		logger = slog.Default()
	}
	thresholds := ThresholdsFromConfig(cfg)

	switch name {
	case "cron":
		return NewCronCheck(cfg.Cron.Pattern, logger), nil
	case "ssl":
		return NewCertificateCheck(cfg.SSL.ConfigDir, thresholds, time.Now, logger), nil
	case "space":
		return NewDiskSpaceCheck(cfg.Space.Mount, cfg.Space.Device, thresholds, logger), nil
	default:
		return nil, fmt.Errorf("unknown check %q (available: %v)", name, KindNames())
	}
}

// KindNames lists the registered check kinds
func KindNames() []string {
	return []string{"cron", "space", "ssl"}
}
