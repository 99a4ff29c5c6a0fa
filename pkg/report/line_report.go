// pkg/report/line_report.go

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/smuckster/fleetcheck/pkg/checks"
	"github.com/smuckster/fleetcheck/pkg/remediate"
	"github.com/smuckster/fleetcheck/pkg/scan"
)

// Line tags. OK findings carry no tag.
const (
	TagOK       = ""
	TagWarning  = "WARNING"
	TagCritical = "CRITICAL"
	TagInvalid  = "INVALID"
	TagError    = "ERROR"
	TagExpanded = "EXPANDED"
)

// TagFor returns the line tag of a severity
func TagFor(severity checks.Severity) string {
	switch severity {
	case checks.SeverityWarning:
		return TagWarning
	case checks.SeverityCritical:
		return TagCritical
	case checks.SeverityInvalid:
		return TagInvalid
	default:
		return TagOK
	}
}

// LineReporter prints one line per finding, grouped under a header per host
type LineReporter struct {
	w            io.Writer
	OnlyWarnings bool
	Palette      *Palette
}

// NewLineReporter creates a line reporter writing to w
func NewLineReporter(w io.Writer, flags checks.Flags) *LineReporter {
	return &LineReporter{
		w:            w,
		OnlyWarnings: flags.OnlyWarnings,
		Palette:      NewPalette(flags.NoColors),
	}
}

// WriteResults prints every host result in order
func (r *LineReporter) WriteResults(results []scan.HostResult) error {
	for _, result := range results {
		if err := r.WriteHost(result); err != nil {
			return err
		}
	}
	return nil
}

// WriteHost prints the header and lines of one host. Findings from the
// re-check after an expansion follow the expansion line.
func (r *LineReporter) WriteHost(result scan.HostResult) error {
	lines := []string{fmt.Sprintf("\n%s: %s", result.Title, result.Host)}

	var before, after []checks.Finding
	for _, finding := range result.Findings {
		if strings.HasSuffix(finding.Item, scan.AfterExpansionSuffix) {
			after = append(after, finding)
		} else {
			before = append(before, finding)
		}
	}

	for _, finding := range before {
		if line, ok := r.findingLine(finding); ok {
			lines = append(lines, line)
		}
	}
	if result.Remediation != nil || result.RemediationErr != nil {
		lines = append(lines, r.remediationLine(result.Remediation, result.RemediationErr))
	}
	for _, finding := range after {
		if line, ok := r.findingLine(finding); ok {
			lines = append(lines, line)
		}
	}
	if result.Err != nil {
		lines = append(lines, r.format("", "connection failed: "+result.Err.Error(), TagError))
	}

	_, err := io.WriteString(r.w, strings.Join(lines, "\n")+"\n")
	return err
}

func (r *LineReporter) findingLine(finding checks.Finding) (string, bool) {
	if r.OnlyWarnings && !finding.Severity.IsProblem() {
		return "", false
	}
	return r.format(finding.Item, finding.Message, TagFor(finding.Severity)), true
}

func (r *LineReporter) remediationLine(state *remediate.State, err error) string {
	item := ""
	if state != nil {
		item = state.VolumeID
	}
	if err != nil {
		return r.format(item, "Volume expansion failed: "+err.Error(), TagError)
	}
	return r.format(item, fmt.Sprintf("Volume expanded from %dG to %dG", state.CurrentSizeGB, state.TargetSizeGB), TagExpanded)
}

// format renders "+ <item>\t<message>\t*<TAG>*"
func (r *LineReporter) format(item, message, tag string) string {
	if tag == TagOK {
		return "+ " + item + "\t" + message
	}
	return "+ " + item + r.Palette.Paint(tag, "\t"+message+"\t*"+tag+"*")
}
