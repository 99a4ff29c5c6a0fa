// pkg/checks/cron.go

package checks

import (
	"context"
	"log/slog"

	"github.com/smuckster/fleetcheck/pkg/utils"
)

// CronFact records whether the scheduled task is installed
type CronFact struct {
	Present bool
}

// CronCheck looks for a pattern in root's crontab
type CronCheck struct {
	Pattern string
	logger  *slog.Logger
}

// NewCronCheck creates a cron presence check
func NewCronCheck(pattern string, logger *slog.Logger) *CronCheck {
	return &CronCheck{Pattern: pattern, logger: logger}
}

// Name returns the check name
func (c *CronCheck) Name() string {
	return "cron"
}

// Title returns the host header label
func (c *CronCheck) Title() string {
	return "Host"
}

// Command returns the privileged probe run on each host
func (c *CronCheck) Command() string {
	return "crontab -l | grep -qF -- " + utils.ShellQuote(c.Pattern)
}

// Extract probes the crontab. Every failure, including a lost connection,
// yields Present=false. This is the only check that swallows errors.
func (c *CronCheck) Extract(ctx context.Context, exec utils.CommandExecutor) CronFact {
	result, err := exec.Run(ctx, c.Command(), true)
	if err != nil {
		c.logger.Debug("cron probe failed, treating as not present",
			"host", exec.GetHostname(), "error", err)
		return CronFact{Present: false}
	}
	return CronFact{Present: result.Success()}
}

// Inspect extracts and classifies the cron fact. It never returns an error.
func (c *CronCheck) Inspect(ctx context.Context, exec utils.CommandExecutor) ([]Finding, error) {
	fact := c.Extract(ctx, exec)
	severity := ClassifyCron(fact)
	return []Finding{{
		Check:    c.Name(),
		Severity: severity,
		Message:  cronMessage(severity),
		Fact:     fact,
	}}, nil
}
