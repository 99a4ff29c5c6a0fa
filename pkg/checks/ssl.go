// pkg/checks/ssl.go

package checks

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/smuckster/fleetcheck/pkg/utils"
)

// opensslDateLayout matches `openssl x509 -enddate` after whitespace is collapsed
const opensslDateLayout = "Jan 2 15:04:05 2006 MST"

var sslCertificateDirective = regexp.MustCompile(`ssl_certificate\s+([^;]+);`)

// CertificateFact is the expiry of one certificate. A nil ExpiresAt means the
// certificate had no readable end date.
type CertificateFact struct {
	Path      string
	ExpiresAt *time.Time
	Raw       string
}

// CertificateCheck finds the certificates declared in the web server
// configuration and reads their expiry dates
type CertificateCheck struct {
	ConfigDir  string
	Thresholds Thresholds
	now        func() time.Time
	logger     *slog.Logger
}

// NewCertificateCheck creates a certificate expiry check
func NewCertificateCheck(configDir string, thresholds Thresholds, now func() time.Time, logger *slog.Logger) *CertificateCheck {
	if now == nil {
		now = time.Now
	}
	return &CertificateCheck{
		ConfigDir:  configDir,
		Thresholds: thresholds,
		now:        now,
		logger:     logger,
	}
}

// Name returns the check name
func (c *CertificateCheck) Name() string {
	return "ssl"
}

// Title returns the host header label
func (c *CertificateCheck) Title() string {
	return "Host"
}

// ListCommand returns the command that prints every ssl_certificate directive
func (c *CertificateCheck) ListCommand() string {
	return "grep -soRE 'ssl_certificate[[:space:]]+[^;]+;' " + utils.ShellQuote(c.ConfigDir)
}

// ExpiryCommand returns the command that prints the end date of one certificate
func ExpiryCommand(path string) string {
	return "openssl x509 -enddate -noout -in " + utils.ShellQuote(path)
}

// ListCertificates returns the certificate paths declared on the host
func (c *CertificateCheck) ListCertificates(ctx context.Context, exec utils.CommandExecutor) ([]string, error) {
	result, err := exec.Run(ctx, c.ListCommand(), true)
	if err != nil {
		return nil, err
	}
	if !result.Success() {
		// grep exits 1 with nothing on stderr when no directive matches
		if result.ExitStatus == 1 && strings.TrimSpace(result.Stderr) == "" {
			c.logger.Debug("no ssl_certificate directives found",
				"host", exec.GetHostname(), "dir", c.ConfigDir)
			return nil, nil
		}
		return nil, listError(result)
	}
	return ParseCertificatePaths(result.Stdout), nil
}

func listError(result *utils.CommandResult) error {
	if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
		return fmt.Errorf("exit status %d: %s", result.ExitStatus, stderr)
	}
	return fmt.Errorf("exit status %d", result.ExitStatus)
}

// Extract reads the expiry of every declared certificate
func (c *CertificateCheck) Extract(ctx context.Context, exec utils.CommandExecutor) ([]CertificateFact, error) {
	paths, err := c.ListCertificates(ctx, exec)
	if err != nil {
		return nil, err
	}

	facts := make([]CertificateFact, 0, len(paths))
	for _, path := range paths {
		result, err := exec.Run(ctx, ExpiryCommand(path), true)
		if err != nil {
			return nil, err
		}

		expiresAt, raw, parseErr := ParseEndDate(result.Stdout)
		if parseErr != nil {
			c.logger.Debug("certificate end date unreadable",
				"host", exec.GetHostname(), "path", path, "error", parseErr)
		}
		facts = append(facts, CertificateFact{Path: path, ExpiresAt: expiresAt, Raw: raw})
	}
	return facts, nil
}

// Inspect extracts and classifies one finding per certificate
func (c *CertificateCheck) Inspect(ctx context.Context, exec utils.CommandExecutor) ([]Finding, error) {
	facts, err := c.Extract(ctx, exec)
	if err != nil {
		if utils.IsConnectionError(err) {
			return nil, err
		}
		c.logger.Debug("certificates could not be listed", "host", exec.GetHostname(), "error", err)
		return []Finding{{
			Check:    c.Name(),
			Item:     c.ConfigDir,
			Severity: SeverityInvalid,
			Message:  "Certificates could not be listed: " + err.Error(),
		}}, nil
	}

	now := c.now()
	findings := make([]Finding, 0, len(facts))
	for _, fact := range facts {
		severity := ClassifyCertificate(fact, now, c.Thresholds)
		findings = append(findings, Finding{
			Check:    c.Name(),
			Item:     fact.Path,
			Severity: severity,
			Message:  certificateMessage(fact, severity),
			Fact:     fact,
		})
	}
	return findings, nil
}

// ParseCertificatePaths extracts the paths from grep output such as
// "/etc/nginx/sites-enabled/default:ssl_certificate /etc/ssl/site.pem;".
// Duplicates are dropped, keeping the first occurrence.
func ParseCertificatePaths(output string) []string {
	var paths []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(output, "\n") {
		match := sslCertificateDirective.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		path := strings.Trim(strings.TrimSpace(match[1]), `"'`)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths
}

// ParseEndDate parses "notAfter=Oct  6 21:33:45 2019 GMT". Empty output
// returns a nil time and no error; output that is present but unparsable
// returns a nil time and the parse error.
func ParseEndDate(output string) (*time.Time, string, error) {
	raw := strings.TrimSpace(output)
	if i := strings.Index(raw, "notAfter="); i >= 0 {
		raw = raw[i+len("notAfter="):]
	}
	if nl := strings.IndexByte(raw, '\n'); nl >= 0 {
		raw = raw[:nl]
	}
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return nil, "", nil
	}

	expiresAt, err := time.Parse(opensslDateLayout, raw)
	if err != nil {
		return nil, raw, fmt.Errorf("malformed certificate end date %q: %w", raw, err)
	}
	expiresAt = expiresAt.UTC()
	return &expiresAt, raw, nil
}
