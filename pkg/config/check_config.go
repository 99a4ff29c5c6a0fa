// pkg/config/check_config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CheckConfig holds the thresholds and command parameters of every check
type CheckConfig struct {
	Cron  CronConfig  `yaml:"cron"`
	SSL   SSLConfig   `yaml:"ssl"`
	Space SpaceConfig `yaml:"space"`
}

// CronConfig configures the scheduled task presence probe
type CronConfig struct {
	Pattern string `yaml:"pattern"`
}

// SSLConfig configures the certificate expiry check
type SSLConfig struct {
	ConfigDir string `yaml:"config_dir"`
	WarnDays  int    `yaml:"warn_days"`
}

// SpaceConfig configures the disk usage check and volume expansion
type SpaceConfig struct {
	Mount           string       `yaml:"mount"`
	Device          string       `yaml:"device"`
	WarnPercent     int          `yaml:"warn_percent"`
	CriticalPercent int          `yaml:"critical_percent"`
	MinFreeGB       float64      `yaml:"min_free_gb"`
	Expand          ExpandConfig `yaml:"expand"`
}

// ExpandConfig configures the volume expansion workflow
type ExpandConfig struct {
	IncrementGB  int           `yaml:"increment_gb"`
	DiskDevice   string        `yaml:"disk_device"`
	Partition    int           `yaml:"partition"`
	Filesystem   string        `yaml:"filesystem"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	Region       string        `yaml:"region"`
}

// DefaultCheckConfig returns the built-in configuration
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		Cron: CronConfig{
			Pattern: "cron.php",
		},
		SSL: SSLConfig{
			ConfigDir: "/etc/nginx/sites-enabled",
			WarnDays:  31,
		},
		Space: SpaceConfig{
			Mount:           "/",
			WarnPercent:     90,
			CriticalPercent: 100,
			MinFreeGB:       5,
			Expand: ExpandConfig{
				IncrementGB:  10,
				DiskDevice:   "/dev/xvda",
				Partition:    1,
				Filesystem:   "ext4",
				PollInterval: 5 * time.Second,
				PollTimeout:  5 * time.Minute,
			},
		},
	}
}

// LoadCheckConfig reads a YAML check configuration on top of the defaults.
// An empty path returns the defaults.
func LoadCheckConfig(path string) (CheckConfig, error) {
	cfg := DefaultCheckConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		return cfg, fmt.Errorf("failed to read check config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse check config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid check config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values a scan cannot run without
func (c CheckConfig) Validate() error {
	var errs []error

	if c.Cron.Pattern == "" {
		errs = append(errs, errors.New("cron.pattern must not be empty"))
	}
	if c.SSL.ConfigDir == "" {
		errs = append(errs, errors.New("ssl.config_dir must not be empty"))
	}
	if c.SSL.WarnDays < 0 {
		errs = append(errs, errors.New("ssl.warn_days must not be negative"))
	}
	if c.Space.Mount == "" && c.Space.Device == "" {
		errs = append(errs, errors.New("space.mount or space.device is required"))
	}
	if c.Space.WarnPercent <= 0 || c.Space.WarnPercent > 100 {
		errs = append(errs, fmt.Errorf("space.warn_percent must be in 1..100, got %d", c.Space.WarnPercent))
	}
	if c.Space.CriticalPercent < c.Space.WarnPercent || c.Space.CriticalPercent > 100 {
		errs = append(errs, fmt.Errorf("space.critical_percent must be in %d..100, got %d", c.Space.WarnPercent, c.Space.CriticalPercent))
	}
	if c.Space.Expand.IncrementGB <= 0 {
		errs = append(errs, errors.New("space.expand.increment_gb must be positive"))
	}
	if c.Space.Expand.PollInterval <= 0 || c.Space.Expand.PollTimeout <= 0 {
		errs = append(errs, errors.New("space.expand poll interval and timeout must be positive"))
	}
	switch c.Space.Expand.Filesystem {
	case "ext2", "ext3", "ext4", "xfs":
	default:
		errs = append(errs, fmt.Errorf("space.expand.filesystem %q is not supported", c.Space.Expand.Filesystem))
	}

	return errors.Join(errs...)
}
