// pkg/checks/space.go

package checks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/smuckster/fleetcheck/pkg/utils"
)

// DiskUsageFact is the usage of one filesystem as reported by df -h
type DiskUsageFact struct {
	Filesystem  string
	Mount       string
	PercentUsed int
	Used        string
	Total       string
	Free        string
	FreeGB      float64
}

// DiskSpaceCheck reads the usage of the primary data volume
type DiskSpaceCheck struct {
	// Mount selects the filesystem by mount point
	Mount string
	// Device, when set, selects the filesystem by device name instead (e.g. xvda1)
	Device     string
	Thresholds Thresholds
	logger     *slog.Logger
}

// NewDiskSpaceCheck creates a disk usage check
func NewDiskSpaceCheck(mount, device string, thresholds Thresholds, logger *slog.Logger) *DiskSpaceCheck {
	return &DiskSpaceCheck{
		Mount:      mount,
		Device:     device,
		Thresholds: thresholds,
		logger:     logger,
	}
}

// Name returns the check name
func (c *DiskSpaceCheck) Name() string {
	return "space"
}

// Title returns the host header label
func (c *DiskSpaceCheck) Title() string {
	return "Space Usage"
}

// Command returns the df invocation for the selected filesystem
func (c *DiskSpaceCheck) Command() string {
	if c.Device != "" {
		return "df -h -P"
	}
	return "df -h -P " + utils.ShellQuote(c.Mount)
}

func (c *DiskSpaceCheck) selector() string {
	if c.Device != "" {
		return c.Device
	}
	return c.Mount
}

// Extract reads the disk usage fact. The error is a transport error when the
// command could not run, or a parse error when its output was unusable; the
// two are told apart with utils.IsConnectionError.
func (c *DiskSpaceCheck) Extract(ctx context.Context, exec utils.CommandExecutor) (DiskUsageFact, error) {
	result, err := exec.Run(ctx, c.Command(), true)
	if err != nil {
		return DiskUsageFact{}, err
	}
	if !result.Success() && result.Stdout == "" {
		return DiskUsageFact{}, fmt.Errorf("df exited with status %d: %s",
			result.ExitStatus, strings.TrimSpace(result.Stderr))
	}
	return ParseDiskUsage(result.Stdout, c.Device)
}

// Inspect extracts and classifies the disk usage fact
func (c *DiskSpaceCheck) Inspect(ctx context.Context, exec utils.CommandExecutor) ([]Finding, error) {
	fact, err := c.Extract(ctx, exec)
	if err != nil {
		if utils.IsConnectionError(err) {
			return nil, err
		}
		c.logger.Debug("disk usage unreadable", "host", exec.GetHostname(), "error", err)
		return []Finding{{
			Check:    c.Name(),
			Item:     c.selector(),
			Severity: SeverityInvalid,
			Message:  "Disk usage could not be read: " + err.Error(),
		}}, nil
	}

	severity := ClassifyDisk(fact, c.Thresholds)
	return []Finding{{
		Check:    c.Name(),
		Item:     fact.Mount,
		Severity: severity,
		Message:  diskMessage(fact, severity),
		Fact:     fact,
	}}, nil
}

// NeedsExpansion reports whether a readable usage fact crossed a threshold
func (c *DiskSpaceCheck) NeedsExpansion(findings []Finding) bool {
	for _, finding := range findings {
		if _, ok := finding.Fact.(DiskUsageFact); !ok {
			continue
		}
		if finding.Severity == SeverityWarning || finding.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// ParseDiskUsage parses POSIX df -h output. With an empty device the last data
// row is used; otherwise the row whose filesystem is, or ends in, /device.
// Columns: Filesystem Size Used Avail Use% Mounted-on.
func ParseDiskUsage(output, device string) (DiskUsageFact, error) {
	var row []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 || fields[0] == "Filesystem" {
			continue
		}
		if device != "" && fields[0] != device && !strings.HasSuffix(fields[0], "/"+device) {
			continue
		}
		row = fields
		if device != "" {
			break
		}
	}
	if row == nil {
		if device != "" {
			return DiskUsageFact{}, fmt.Errorf("no filesystem on device %s in df output", device)
		}
		return DiskUsageFact{}, fmt.Errorf("no filesystem row in df output")
	}

	percent, err := strconv.Atoi(strings.TrimSuffix(row[4], "%"))
	if err != nil {
		return DiskUsageFact{}, fmt.Errorf("malformed usage percentage %q: %w", row[4], err)
	}
	if percent < 0 || percent > 100 {
		return DiskUsageFact{}, fmt.Errorf("usage percentage %d out of range", percent)
	}

	freeGB, err := ParseSizeGB(row[3])
	if err != nil {
		return DiskUsageFact{}, err
	}

	return DiskUsageFact{
		Filesystem:  row[0],
		Total:       row[1],
		Used:        row[2],
		Free:        row[3],
		PercentUsed: percent,
		FreeGB:      freeGB,
		// Mount points may contain spaces
		Mount: strings.Join(row[5:], " "),
	}, nil
}

// ParseSizeGB converts a df -h size such as "4.2G" or "512M" to gigabytes
// (powers of 1024). A bare number is taken as bytes.
func ParseSizeGB(size string) (float64, error) {
	size = strings.TrimSpace(size)
	if size == "" {
		return 0, fmt.Errorf("empty size")
	}

	exponent := map[byte]int{'B': -3, 'K': -2, 'M': -1, 'G': 0, 'T': 1, 'P': 2, 'E': 3}
	unit := size[len(size)-1]
	shift, hasUnit := exponent[unit]
	number := size
	if hasUnit {
		number = size[:len(size)-1]
	} else {
		shift = -3
	}

	value, err := strconv.ParseFloat(strings.Replace(number, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed size %q: %w", size, err)
	}

	for ; shift > 0; shift-- {
		value *= 1024
	}
	for ; shift < 0; shift++ {
		value /= 1024
	}
	return value, nil
}
